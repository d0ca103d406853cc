package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrBadCodeName is returned when a code name cannot be parsed
var ErrBadCodeName = errors.New("bad code name")

// ItemID is the stable key of a field item inside a Registry
type ItemID int

// GroupID identifies a PlantGroup. Zero means "no group".
type GroupID int

// ItemKind tags which variant of field item a record is
type ItemKind int

const (
	KindPlant ItemKind = iota
	KindGap
	KindGroupCode
	KindRowCode
)

func (k ItemKind) String() string {
	switch k {
	case KindPlant:
		return "Plant"
	case KindGap:
		return "Gap"
	case KindGroupCode:
		return "GroupCode"
	case KindRowCode:
		return "RowCode"
	}
	return fmt.Sprintf("ItemKind(%d)", int(k))
}

// IsCode reports whether the kind is one of the printed codes
func (k ItemKind) IsCode() bool {
	return k == KindGroupCode || k == KindRowCode
}

// ParseKind converts a kind name (as written by the detector) to an ItemKind
func ParseKind(s string) (ItemKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plant":
		return KindPlant, nil
	case "gap":
		return KindGap, nil
	case "groupcode", "group_code", "code-group":
		return KindGroupCode, nil
	case "rowcode", "row_code", "code-row":
		return KindRowCode, nil
	}
	return 0, fmt.Errorf("unknown item kind %q", s)
}

// Vec3 is a world position in meters (easting, northing, altitude)
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlanarDistance returns the x/y distance between two positions, ignoring altitude
func PlanarDistance(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// BoundingRect is a pixel rectangle inside the source image
type BoundingRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Center returns the pixel center of the rectangle
func (r BoundingRect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// GeoImage is one photograph with its camera pose. Distances other than
// Position are in centimeters.
type GeoImage struct {
	FileName              string  `json:"file_name"`
	Time                  float64 `json:"time"`
	Position              Vec3    `json:"position"`
	HeadingDegrees        float64 `json:"heading_degrees"`
	ProvidedResolution    float64 `json:"provided_resolution"`
	FocalLength           float64 `json:"focal_length"`
	SensorWidth           float64 `json:"sensor_width"`
	CameraHeight          float64 `json:"camera_height"`
	CameraRotationDegrees float64 `json:"camera_rotation_degrees"`
	Width                 int     `json:"width"`
	Height                int     `json:"height"`
}

// Resolution returns the centimeter/pixel resolution of the image, or 0 if it
// can't be derived.
func (g *GeoImage) Resolution() float64 {
	if g.ProvidedResolution > 0 {
		return g.ProvidedResolution
	}
	if g.FocalLength <= 0 || g.Width <= 0 {
		return 0
	}
	hfov := g.CameraHeight * (g.SensorWidth / g.FocalLength)
	return hfov / float64(g.Width)
}

// FieldItem is one observed object. After identity resolution a canonical item
// references its duplicates through OtherItems.
type FieldItem struct {
	ID                ItemID       `json:"id"`
	Kind              ItemKind     `json:"kind"`
	Name              string       `json:"name"`
	Position          Vec3         `json:"position"`
	Size              [2]float64   `json:"size"`
	Area              float64      `json:"area"`
	Row               int          `json:"row"`
	Range             int          `json:"range"`
	Box               BoundingRect `json:"box"`
	ImageFile         string       `json:"image_file"`
	OtherItems        []ItemID     `json:"other_items,omitempty"`
	Group             GroupID      `json:"group,omitempty"`
	NumberWithinField int          `json:"number_within_field"`
	NumberWithinRow   int          `json:"number_within_row"`
}

func (f *FieldItem) String() string {
	return fmt.Sprintf("%v %q #%d", f.Kind, f.Name, f.ID)
}

// RowNumber parses the row number out of a row code name. Accepted forms are
// "row<N>", "R.<N>" and a bare "<N>".
func (f *FieldItem) RowNumber() (int, error) {
	return ParseRowNumber(f.Name)
}

// ParseRowNumber parses a row code name
func ParseRowNumber(name string) (int, error) {
	s := strings.TrimSpace(name)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "row"):
		s = s[3:]
	case strings.HasPrefix(lower, "r."):
		s = s[2:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: row code %q", ErrBadCodeName, name)
	}
	return n, nil
}

// Entry is everything but the last character of a group code name
func (f *FieldItem) Entry() string {
	_, size := utf8.DecodeLastRuneInString(f.Name)
	return f.Name[:len(f.Name)-size]
}

// Rep is the last character of a group code name (the repetition letter)
func (f *FieldItem) Rep() string {
	_, size := utf8.DecodeLastRuneInString(f.Name)
	return f.Name[len(f.Name)-size:]
}

// Registry owns every field item of a run, keyed by ID
type Registry struct {
	items map[ItemID]*FieldItem
	order []ItemID
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[ItemID]*FieldItem)}
}

// Add stores the item. Items with a zero ID are assigned the next free one.
func (r *Registry) Add(item *FieldItem) ItemID {
	if item.ID == 0 {
		item.ID = ItemID(len(r.order) + 1)
		for r.items[item.ID] != nil {
			item.ID++
		}
	}
	if _, exists := r.items[item.ID]; !exists {
		r.order = append(r.order, item.ID)
	}
	r.items[item.ID] = item
	return item.ID
}

// Get returns the item with the given ID, or nil
func (r *Registry) Get(id ItemID) *FieldItem {
	return r.items[id]
}

// Items returns all items in insertion order
func (r *Registry) Items() []*FieldItem {
	out := make([]*FieldItem, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// Len returns the number of items
func (r *Registry) Len() int {
	return len(r.order)
}

// Instances returns the item followed by all of its duplicates
func (r *Registry) Instances(item *FieldItem) []*FieldItem {
	out := []*FieldItem{item}
	for _, id := range item.OtherItems {
		if other := r.items[id]; other != nil {
			out = append(out, other)
		}
	}
	return out
}

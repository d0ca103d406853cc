package models

import "fmt"

// Direction is the travel direction of a row relative to the whole field
type Direction int

const (
	Up Direction = iota
	Back
)

func (d Direction) String() string {
	if d == Back {
		return "back"
	}
	return "up"
}

// Row is one physical field row delimited by two row codes. StartCode and
// EndCode are relative to the field direction, not the row's travel direction.
type Row struct {
	StartCode *FieldItem
	EndCode   *FieldItem
	Direction Direction
	Items     []*FieldItem
	Segments  []*Segment
}

// Number returns the row number encoded in the start code
func (r *Row) Number() int {
	if r.StartCode == nil {
		return 0
	}
	n, _ := r.StartCode.RowNumber()
	return n
}

// Length returns the planar distance between the row codes
func (r *Row) Length() float64 {
	if r.StartCode == nil || r.EndCode == nil {
		return 0
	}
	return PlanarDistance(r.StartCode.Position, r.EndCode.Position)
}

// Segment is the portion of a row between two consecutive boundary codes
type Segment struct {
	StartCode *FieldItem
	EndCode   *FieldItem
	Items     []*FieldItem
	Group     GroupID
	Row       int
}

// Length returns the planar distance between the boundary codes
func (s *Segment) Length() float64 {
	return PlanarDistance(s.StartCode.Position, s.EndCode.Position)
}

func (s *Segment) String() string {
	return fmt.Sprintf("row %d [%s -> %s]", s.Row, s.StartCode.Name, s.EndCode.Name)
}

// GroupFlag marks a validation finding on a plant group
type GroupFlag string

const (
	FlagTooLong      GroupFlag = "too_long"
	FlagTooShort     GroupFlag = "too_short"
	FlagUnknownCount GroupFlag = "unknown_count"
	FlagTruncated    GroupFlag = "truncated"
)

// PlantGroup is a complete planting entry made of one or two segments
type PlantGroup struct {
	ID             GroupID
	Segments       []*Segment
	ExpectedCount  int
	ExpectedLength float64
	Flags          []GroupFlag
}

// Code returns the group code that names the group
func (g *PlantGroup) Code() *FieldItem {
	if len(g.Segments) == 0 {
		return nil
	}
	first := g.Segments[0]
	if first.StartCode.Kind == KindGroupCode {
		return first.StartCode
	}
	if first.EndCode.Kind == KindGroupCode {
		return first.EndCode
	}
	return nil
}

// Name returns the group code name, or "" if the group has no code
func (g *PlantGroup) Name() string {
	if c := g.Code(); c != nil {
		return c.Name
	}
	return ""
}

func (g *PlantGroup) Entry() string {
	if c := g.Code(); c != nil {
		return c.Entry()
	}
	return ""
}

func (g *PlantGroup) Rep() string {
	if c := g.Code(); c != nil {
		return c.Rep()
	}
	return ""
}

// Length is the summed length of all segments
func (g *PlantGroup) Length() float64 {
	total := 0.0
	for _, s := range g.Segments {
		total += s.Length()
	}
	return total
}

// HasFlag reports whether the flag has been raised on the group
func (g *PlantGroup) HasFlag(flag GroupFlag) bool {
	for _, f := range g.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag raises a flag once
func (g *PlantGroup) AddFlag(flag GroupFlag) {
	if !g.HasFlag(flag) {
		g.Flags = append(g.Flags, flag)
	}
}

// Items returns the plants and gaps of every segment in traversal order
func (g *PlantGroup) Items() []*FieldItem {
	var out []*FieldItem
	for _, s := range g.Segments {
		out = append(out, s.Items...)
	}
	return out
}

// Package ingest reads the text files produced by the acquisition and
// detection tools: image poses, per-image detections and the planting table.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/1F47E/fieldmap/pkg/models"
)

// ErrDuplicateGroup is returned when the group info file lists a name twice
var ErrDuplicateGroup = errors.New("duplicate group")

// Camera holds the settings shared by every image of a run
type Camera struct {
	RotationDegrees    float64
	ProvidedResolution float64
	FocalLength        float64
	SensorWidth        float64
	HeightCm           float64
	Width              int
	Height             int
}

const geoFields = 8

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return cr
}

// StripExt removes the file extension so names match across files
func StripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ReadGeoImages parses "time,name,x,y,z,roll,pitch,heading" lines. Lines that
// don't parse are logged and skipped; the number skipped is returned.
func ReadGeoImages(log logs.Log, r io.Reader, cam Camera) ([]*models.GeoImage, int, error) {
	cr := newReader(r)
	var images []*models.GeoImage
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.Warnf("Bad geo line %d: %v", perr.Line, err)
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("failed to read geo file: %w", err)
		}
		img, err := parseGeoRecord(record, cam)
		if err != nil {
			line, _ := cr.FieldPos(0)
			log.Warnf("Bad geo line %d: %v", line, err)
			skipped++
			continue
		}
		images = append(images, img)
	}
	return images, skipped, nil
}

func parseGeoRecord(record []string, cam Camera) (*models.GeoImage, error) {
	if len(record) < geoFields {
		return nil, fmt.Errorf("expected %d fields, got %d", geoFields, len(record))
	}
	nums := make([]float64, 0, geoFields-1)
	for i, f := range record[:geoFields] {
		if i == 1 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}
		nums = append(nums, v)
	}
	name := StripExt(strings.TrimSpace(record[1]))
	if name == "" {
		return nil, fmt.Errorf("empty image name")
	}
	// nums: time, x, y, z, roll, pitch, heading
	return &models.GeoImage{
		FileName:              name,
		Time:                  nums[0],
		Position:              models.Vec3{X: nums[1], Y: nums[2], Z: nums[3]},
		HeadingDegrees:        nums[6],
		ProvidedResolution:    cam.ProvidedResolution,
		FocalLength:           cam.FocalLength,
		SensorWidth:           cam.SensorWidth,
		CameraHeight:          cam.HeightCm,
		CameraRotationDegrees: cam.RotationDegrees,
		Width:                 cam.Width,
		Height:                cam.Height,
	}, nil
}

// ReadDetections parses "image,kind,name,x,y,w,h" rows where x,y,w,h is the
// pixel bounding box of the detection. A leading header row is allowed.
func ReadDetections(r io.Reader) ([]*models.FieldItem, error) {
	cr := newReader(r)
	var items []*models.FieldItem
	for n := 0; ; n++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read detections: %w", err)
		}
		if n == 0 && strings.EqualFold(strings.TrimSpace(record[0]), "image") {
			continue
		}
		item, err := parseDetection(record)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("detection line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func parseDetection(record []string) (*models.FieldItem, error) {
	if len(record) < 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(record))
	}
	kind, err := models.ParseKind(record[1])
	if err != nil {
		return nil, err
	}
	var box [4]float64
	for i := range box {
		box[i], err = strconv.ParseFloat(strings.TrimSpace(record[3+i]), 64)
		if err != nil {
			return nil, fmt.Errorf("bounding box: %w", err)
		}
	}
	return &models.FieldItem{
		Kind:      kind,
		Name:      strings.TrimSpace(record[2]),
		ImageFile: StripExt(strings.TrimSpace(record[0])),
		Box:       models.BoundingRect{X: box[0], Y: box[1], Width: box[2], Height: box[3]},
	}, nil
}

// ReadGroupInfo parses "name,count" rows into the expected plant counts.
// A leading header row is allowed.
func ReadGroupInfo(r io.Reader) (map[string]int, error) {
	cr := newReader(r)
	counts := map[string]int{}
	for n := 0; ; n++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read group info: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(record) < 2 {
			return nil, fmt.Errorf("group info line %d: expected name,count", line)
		}
		name := strings.TrimSpace(record[0])
		count, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			if n == 0 {
				continue
			}
			return nil, fmt.Errorf("group info line %d: bad count: %w", line, err)
		}
		if _, dup := counts[name]; dup {
			return nil, fmt.Errorf("%w: %q on line %d", ErrDuplicateGroup, name, line)
		}
		counts[name] = count
	}
	return counts, nil
}

// ReadGeoFile opens path and calls ReadGeoImages
func ReadGeoFile(log logs.Log, path string, cam Camera) ([]*models.GeoImage, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open geo file: %w", err)
	}
	defer f.Close()
	return ReadGeoImages(log, f, cam)
}

// ReadDetectionsFile opens path and calls ReadDetections
func ReadDetectionsFile(path string) ([]*models.FieldItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detections file: %w", err)
	}
	defer f.Close()
	return ReadDetections(f)
}

// ReadGroupInfoFile opens path and calls ReadGroupInfo
func ReadGroupInfoFile(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open group info file: %w", err)
	}
	defer f.Close()
	return ReadGroupInfo(f)
}

// Package fieldtest builds small synthetic fields for tests.
package fieldtest

import (
	"fmt"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/resolve"
	"github.com/1F47E/fieldmap/pkg/rows"
)

// Scene is a list of detections, each taken by its own image looking
// straight down at it. Images are captured in the order detections are added.
type Scene struct {
	Images     []*models.GeoImage
	Detections []*models.FieldItem
}

// See adds a detection of an item at world position (x, y) in meters
func (s *Scene) See(kind models.ItemKind, name string, x, y float64) *models.FieldItem {
	n := len(s.Images) + 1
	img := &models.GeoImage{
		FileName: fmt.Sprintf("IMG_%04d", n),
		Time:     float64(n),
		Position: models.Vec3{X: x, Y: y},
		// heading 90 with no camera rotation keeps pixel axes on world axes
		HeadingDegrees:     90,
		ProvidedResolution: 1,
		Width:              1000,
		Height:             1000,
	}
	det := &models.FieldItem{
		Kind:      kind,
		Name:      name,
		ImageFile: img.FileName,
		Box:       models.BoundingRect{X: 495, Y: 495, Width: 10, Height: 10},
	}
	s.Images = append(s.Images, img)
	s.Detections = append(s.Detections, det)
	return det
}

// Input returns the scene as reconstruction input
func (s *Scene) Input(expected map[string]int) field.Input {
	return field.Input{Images: s.Images, Detections: s.Detections, ExpectedCounts: expected}
}

// ExpectedCounts fits the groups of TwoRows at a plant spacing of 1.5 m.
// Group 4A is never planted.
var ExpectedCounts = map[string]int{"1A": 2, "2A": 5, "3A": 4, "4A": 3}

// Options returns run options matching TwoRows
func Options() field.Options {
	return field.Options{
		MaxDistanceCm:    12,
		Recluster:        true,
		TiePolicy:        resolve.TieKeepAll,
		Convention:       rows.Convention{FirstRow: 1, RowStep: 1},
		LateralTolerance: 0.5,
		PlantSpacing:     1.5,
		LengthTolerance:  1,
	}
}

// TwoRows returns one planter pass: row 1 driven up along x=0 and row 2
// driven back along x=1, both from y=0 to y=10.
//
//	row 1: code y0, plant y1, 1A y3, plant y4 (seen twice), plant y5, 2A y6, plant y8, code y10
//	row 2: code y10, plant y9, 3A y5, plant y2, code y0
//
// Group 1A lies inside row 1, 2A wraps from the top of row 1 into row 2 and
// 3A wraps from the bottom of row 2 into row 1. Without group1Plants the 1A
// segment has no plants.
func TwoRows(group1Plants bool) *Scene {
	s := &Scene{}
	s.See(models.KindRowCode, "row1", 0, 0)
	s.See(models.KindPlant, "", 0, 1)
	s.See(models.KindGroupCode, "1A", 0, 3)
	if group1Plants {
		s.See(models.KindPlant, "", 0, 4)
		s.See(models.KindPlant, "", 0, 4.05)
		s.See(models.KindPlant, "", 0, 5)
	}
	s.See(models.KindGroupCode, "2A", 0, 6)
	s.See(models.KindPlant, "", 0, 8)
	s.See(models.KindRowCode, "row1", 0, 10)

	s.See(models.KindRowCode, "row2", 1, 10)
	s.See(models.KindPlant, "", 1, 9)
	s.See(models.KindGroupCode, "3A", 1, 5)
	s.See(models.KindPlant, "", 1, 2)
	s.See(models.KindRowCode, "row2", 1, 0)
	return s
}

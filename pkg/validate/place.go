package validate

import (
	"errors"
	"fmt"
	"math"

	"github.com/1F47E/fieldmap/pkg/models"
)

// MinPlacedSpacing is the smallest plant spacing PlacePlants accepts, in meters
const MinPlacedSpacing = 0.3

var ErrCannotPlace = errors.New("cannot place plants")

// PlacePlants returns count plants evenly spaced along the segment, the last
// one on the segment's end code. The plants are not added to the segment.
func PlacePlants(s *models.Segment, count int) ([]*models.FieldItem, error) {
	length := s.Length()
	if length == 0 {
		return nil, fmt.Errorf("%w: segment %v has zero length", ErrCannotPlace, s)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: segment %v has no expected plants", ErrCannotPlace, s)
	}
	spacing := length / float64(count)
	if spacing < MinPlacedSpacing {
		return nil, fmt.Errorf("%w: segment %v of %.2f m with %d plants has spacing %.2f m, minimum is %.2f m",
			ErrCannotPlace, s, length, count, spacing, MinPlacedSpacing)
	}

	start, end := s.StartCode.Position, s.EndCode.Position
	plants := make([]*models.FieldItem, 0, count)
	for i := 1; i <= count; i++ {
		f := float64(i) / float64(count)
		plants = append(plants, &models.FieldItem{
			Kind: models.KindPlant,
			Name: fmt.Sprintf("Plant%d", i),
			Position: models.Vec3{
				X: start.X + f*(end.X-start.X),
				Y: start.Y + f*(end.Y-start.Y),
				Z: start.Z + f*(end.Z-start.Z),
			},
			Row:   s.Row,
			Group: s.Group,
		})
	}
	return plants, nil
}

// SplitCount divides a group's expected plant count over its segments in
// proportion to their lengths. The last segment absorbs rounding.
func SplitCount(g *models.PlantGroup, count int) []int {
	out := make([]int, len(g.Segments))
	total := g.Length()
	if len(out) == 0 {
		return out
	}
	if total == 0 {
		out[len(out)-1] = count
		return out
	}
	used := 0
	for i, s := range g.Segments[:len(g.Segments)-1] {
		out[i] = int(math.Round(float64(count) * s.Length() / total))
		used += out[i]
	}
	out[len(out)-1] = max(0, count-used)
	return out
}

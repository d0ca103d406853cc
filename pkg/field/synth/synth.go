// Package synth generates the detections a camera would report while driving
// a serpentine route over a regularly planted field. It is used to benchmark
// and smoke test reconstruction at realistic sizes.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
)

const (
	imageWidth  = 4000
	imageHeight = 3000
	// cm per pixel
	resolution = 0.1
	boxPixels  = 100
)

// Params describes a generated field
type Params struct {
	Rows         int
	RowLength    float64
	RowSpacing   float64
	PlantSpacing float64
	// GroupSize is the number of plants between consecutive group codes
	GroupSize int
	// ImageStep is the distance driven between two images
	ImageStep float64
	// Jitter is the maximum position error of a single detection
	Jitter float64
	Seed   int64
}

func DefaultParams() Params {
	return Params{
		Rows:         10,
		RowLength:    50,
		RowSpacing:   1,
		PlantSpacing: 0.9144,
		GroupSize:    10,
		ImageStep:    1,
		Jitter:       0.02,
		Seed:         1,
	}
}

// footprint is the image length along the direction of travel, in meters
func footprint() float64 {
	return imageHeight * resolution / 100
}

type truth struct {
	kind models.ItemKind
	name string
	// distance from the row start along the direction of travel
	along float64
}

type rowPlan struct {
	codes    []string
	leading  int
	trailing int
}

// Field returns reconstruction input for a field of p.Rows rows. Row 1 is
// driven up the field and every following row reverses direction. The
// expected counts are exact for every group code, including groups that
// wrap into the other row of a pass.
func Field(p Params) (field.Input, error) {
	groupLength := p.PlantSpacing * float64(p.GroupSize)
	switch {
	case p.Rows <= 0:
		return field.Input{}, fmt.Errorf("need at least one row, got %d", p.Rows)
	case p.GroupSize <= 0 || p.PlantSpacing <= 0 || p.ImageStep <= 0:
		return field.Input{}, fmt.Errorf("group size, plant spacing and image step must be positive")
	case p.RowLength <= groupLength:
		return field.Input{}, fmt.Errorf("rows of %.2f m are too short for a group of %.2f m", p.RowLength, groupLength)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	in := field.Input{ExpectedCounts: map[string]int{}}
	plans := make([]rowPlan, p.Rows)
	group := 0

	for r := 0; r < p.Rows; r++ {
		rowName := fmt.Sprintf("row%d", r+1)
		items := []truth{{kind: models.KindRowCode, name: rowName}}
		for d := groupLength; d < p.RowLength; d += groupLength {
			group++
			name := fmt.Sprintf("%dA", group)
			items = append(items, truth{kind: models.KindGroupCode, name: name, along: d})
			plans[r].codes = append(plans[r].codes, name)
		}
		lastCode := items[len(items)-1].along
		for d := p.PlantSpacing / 2; d < p.RowLength; d += p.PlantSpacing {
			items = append(items, truth{kind: models.KindPlant, along: d})
			switch {
			case d < groupLength:
				plans[r].leading++
			case d > lastCode:
				plans[r].trailing++
			}
		}
		items = append(items, truth{kind: models.KindRowCode, name: rowName, along: p.RowLength})

		drive(rng, &in, p, r, items)
	}

	for i := range plans {
		codes := plans[i].codes
		for _, name := range codes[:len(codes)-1] {
			in.ExpectedCounts[name] = p.GroupSize
		}
	}
	// the last group of a row continues at the start of the other row of its pass
	for i := 0; i < len(plans); i += 2 {
		a := plans[i]
		if i+1 == len(plans) {
			in.ExpectedCounts[a.codes[len(a.codes)-1]] = a.trailing
			continue
		}
		b := plans[i+1]
		in.ExpectedCounts[a.codes[len(a.codes)-1]] = a.trailing + b.leading
		in.ExpectedCounts[b.codes[len(b.codes)-1]] = b.trailing + a.leading
	}
	return in, nil
}

// drive takes images along row r and records every item under the camera.
// Only the row under the camera is detected.
func drive(rng *rand.Rand, in *field.Input, p Params, r int, items []truth) {
	x := float64(r) * p.RowSpacing
	up := r%2 == 0
	worldY := func(along float64) float64 {
		if up {
			return along
		}
		return p.RowLength - along
	}
	heading := 90.0
	if !up {
		heading = 270
	}
	jitter := func() float64 { return (rng.Float64()*2 - 1) * p.Jitter }

	steps := int(math.Ceil(p.RowLength / p.ImageStep))
	for i := 0; i <= steps; i++ {
		along := float64(i) * p.ImageStep
		img := &models.GeoImage{
			FileName:           fmt.Sprintf("IMG_%05d", len(in.Images)+1),
			Time:               float64(len(in.Images)),
			Position:           models.Vec3{X: x, Y: worldY(along)},
			HeadingDegrees:     heading,
			ProvidedResolution: resolution,
			Width:              imageWidth,
			Height:             imageHeight,
		}
		in.Images = append(in.Images, img)

		for _, t := range items {
			if math.Abs(t.along-along) > footprint()/2 {
				continue
			}
			px, py := pixel(models.Vec3{X: x + jitter(), Y: worldY(t.along) + jitter()}, img)
			in.Detections = append(in.Detections, &models.FieldItem{
				Kind:      t.kind,
				Name:      t.name,
				ImageFile: img.FileName,
				Box: models.BoundingRect{
					X:      px - boxPixels/2,
					Y:      py - boxPixels/2,
					Width:  boxPixels,
					Height: boxPixels,
				},
			})
		}
	}
}

// pixel is the inverse of the projector for an image with no camera rotation
func pixel(world models.Vec3, img *models.GeoImage) (float64, float64) {
	offset := r2.Vec{X: world.X - img.Position.X, Y: world.Y - img.Position.Y}
	angle := (img.HeadingDegrees - 90) * math.Pi / 180
	c := r2.Scale(100/img.ProvidedResolution, r2.Rotate(offset, -angle, r2.Vec{}))
	return float64(img.Width)/2 + c.X, float64(img.Height)/2 - c.Y
}

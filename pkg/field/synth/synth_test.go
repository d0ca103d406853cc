package synth

import (
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/projector"
	"github.com/1F47E/fieldmap/pkg/rows"
)

func options() field.Options {
	return field.Options{
		MaxDistanceCm:    12,
		Recluster:        true,
		Convention:       rows.Convention{FirstRow: 1, RowStep: 1},
		LateralTolerance: 0.5,
		PlantSpacing:     0.9144,
		LengthTolerance:  1,
	}
}

func TestPixelInvertsProjection(t *testing.T) {
	for _, heading := range []float64{90, 270, 30} {
		img := &models.GeoImage{
			Position:           models.Vec3{X: 10, Y: 20},
			HeadingDegrees:     heading,
			ProvidedResolution: resolution,
			Width:              imageWidth,
			Height:             imageHeight,
		}
		world := models.Vec3{X: 10.3, Y: 19.2}
		px, py := pixel(world, img)
		got, err := projector.Project(px, py, img)
		require.NoError(t, err)
		assert.InDelta(t, world.X, got.X, 1e-9)
		assert.InDelta(t, world.Y, got.Y, 1e-9)
	}
}

func TestFieldReconstructs(t *testing.T) {
	p := DefaultParams()
	in, err := Field(p)
	require.NoError(t, err)

	f, err := field.Reconstruct(logs.NewTestingLog(t), in, options())
	require.NoError(t, err)

	// 2 row codes, 5 group codes and 55 plants per row
	assert.Len(t, f.Canonical, p.Rows*(2+5+55))
	assert.Nil(t, f.OpenRow)
	assert.Len(t, f.Rows, p.Rows)
	assert.Len(t, f.Groups, len(in.ExpectedCounts))

	plants, expected := 0, 0
	for _, item := range f.Canonical {
		if item.Kind == models.KindPlant {
			plants++
		}
	}
	for _, n := range in.ExpectedCounts {
		expected += n
	}
	// every plant belongs to exactly one group when all passes are complete
	assert.Equal(t, plants, expected)

	for _, g := range f.Groups {
		assert.False(t, g.HasFlag(models.FlagUnknownCount), g.Name())
		assert.Equal(t, in.ExpectedCounts[g.Name()], g.ExpectedCount)
		if len(g.Segments) == 1 && g.Segments[0].EndCode.Kind == models.KindGroupCode {
			assert.Empty(t, g.Flags, g.Name())
		}
	}
}

func TestFieldDeterministic(t *testing.T) {
	a, err := Field(DefaultParams())
	require.NoError(t, err)
	b, err := Field(DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFieldRejectsBadParams(t *testing.T) {
	for _, mutate := range []func(*Params){
		func(p *Params) { p.Rows = 0 },
		func(p *Params) { p.GroupSize = 0 },
		func(p *Params) { p.ImageStep = 0 },
		func(p *Params) { p.RowLength = 5 },
	} {
		p := DefaultParams()
		mutate(&p)
		_, err := Field(p)
		assert.Error(t, err)
	}
}

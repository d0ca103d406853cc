package field_test

import (
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/fieldmap/pkg/config"
	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/field/fieldtest"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/resolve"
	"github.com/1F47E/fieldmap/pkg/rows"
	"github.com/1F47E/fieldmap/pkg/stitch"
	"github.com/1F47E/fieldmap/pkg/validate"
)

func groupNames(f *field.Field) []string {
	var names []string
	for _, g := range f.Groups {
		names = append(names, g.Name())
	}
	return names
}

func TestReconstruct(t *testing.T) {
	scene := fieldtest.TwoRows(true)
	f, err := field.Reconstruct(logs.NewTestingLog(t), scene.Input(fieldtest.ExpectedCounts), fieldtest.Options())
	require.NoError(t, err)

	assert.Equal(t, 14, f.Registry.Len())
	require.Len(t, f.Canonical, 13)
	assert.Equal(t, 0, f.Demoted)
	assert.Nil(t, f.OpenRow)
	assert.Empty(t, f.Outside)
	assert.Empty(t, f.Report.Anomalies)

	// the plant seen twice is merged into its first detection
	dup := scene.Detections[4]
	merged := scene.Detections[3]
	assert.Equal(t, []models.ItemID{dup.ID}, merged.OtherItems)
	assert.NotContains(t, f.Canonical, dup)

	require.Len(t, f.Rows, 2)
	row1, row2 := f.Rows[0], f.Rows[1]
	assert.Equal(t, 1, row1.Number())
	assert.Equal(t, models.Up, row1.Direction)
	assert.Equal(t, 2, row2.Number())
	assert.Equal(t, models.Back, row2.Direction)
	require.Len(t, row1.Segments, 3)
	require.Len(t, row2.Segments, 2)

	assert.Equal(t, []string{"1A", "2A", "3A"}, groupNames(f))
	assert.Equal(t, []*models.Segment{row1.Segments[1]}, f.Groups[0].Segments)
	assert.Equal(t, []*models.Segment{row1.Segments[2], row2.Segments[0]}, f.Groups[1].Segments)
	assert.Equal(t, []*models.Segment{row2.Segments[1], row1.Segments[0]}, f.Groups[2].Segments)
	assert.Equal(t, 0, f.Flagged)
	for _, g := range f.Groups {
		assert.Empty(t, g.Flags, g.Name())
	}

	var ys []float64
	for i, item := range append(validate.RowSequence(row1), validate.RowSequence(row2)...) {
		assert.Equal(t, i+1, item.NumberWithinField)
		ys = append(ys, item.Position.Y)
	}
	assert.Equal(t, []float64{0, 1, 3, 4, 5, 6, 8, 10, 10, 9, 5, 2, 0}, ys)
	assert.Equal(t, 1, merged.Row)
	assert.Equal(t, models.GroupID(1), merged.Group)

	assert.Equal(t, []string{"4A"}, f.Inventory.MissingGroups)
	assert.Empty(t, f.Inventory.ExtraGroups)
	assert.Empty(t, f.Inventory.MissingRows)
	assert.Empty(t, f.Inventory.UnpairedRows)
}

func TestReconstructPlacesMissingPlants(t *testing.T) {
	opt := fieldtest.Options()
	opt.PlaceMissingPlants = true
	scene := fieldtest.TwoRows(false)

	f, err := field.Reconstruct(logs.NewTestingLog(t), scene.Input(fieldtest.ExpectedCounts), opt)
	require.NoError(t, err)

	require.Len(t, f.Placed, 2)
	assert.Equal(t, len(scene.Detections)+2, f.Registry.Len())
	assert.InDelta(t, 4.5, f.Placed[0].Position.Y, 1e-9)
	assert.InDelta(t, 6.0, f.Placed[1].Position.Y, 1e-9)

	seg := f.Groups[0].Segments[0]
	assert.Equal(t, f.Placed, seg.Items)
	for _, p := range f.Placed {
		assert.NotZero(t, p.ID)
		assert.NotZero(t, p.NumberWithinField)
		assert.Equal(t, 1, p.Row)
		assert.Equal(t, f.Groups[0].ID, p.Group)
	}

	// without the option nothing is synthesized
	f, err = field.Reconstruct(logs.NewTestingLog(t), fieldtest.TwoRows(false).Input(fieldtest.ExpectedCounts), fieldtest.Options())
	require.NoError(t, err)
	assert.Empty(t, f.Placed)
}

func TestReconstructRowWithoutGroupCode(t *testing.T) {
	scene := &fieldtest.Scene{}
	scene.See(models.KindRowCode, "row1", 0, 0)
	scene.See(models.KindPlant, "", 0, 5)
	scene.See(models.KindRowCode, "row1", 0, 10)

	_, err := field.Reconstruct(logs.NewTestingLog(t), scene.Input(nil), fieldtest.Options())
	require.Error(t, err)
	assert.True(t, errors.Is(err, stitch.ErrFullRowSegment))
}

func TestReconstructOpenRow(t *testing.T) {
	scene := fieldtest.TwoRows(true)
	scene.See(models.KindRowCode, "row3", 0, 0)
	scene.See(models.KindPlant, "", 0, 2)

	f, err := field.Reconstruct(logs.NewTestingLog(t), scene.Input(fieldtest.ExpectedCounts), fieldtest.Options())
	require.NoError(t, err)
	require.NotNil(t, f.OpenRow)
	assert.Equal(t, 3, f.OpenRow.Number())
	assert.Len(t, f.Rows, 2)
	assert.Len(t, f.Groups, 3)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetTiePolicy("keep-canonical")
	cfg.SetFirstRow(5)

	opt := field.OptionsFromConfig(cfg)
	assert.Equal(t, config.DefaultMaxDistanceCm, opt.MaxDistanceCm)
	assert.Equal(t, resolve.TieKeepCanonical, opt.TiePolicy)
	assert.Equal(t, rows.Convention{FirstRow: 5, RowStep: 1}, opt.Convention)
	assert.Equal(t, config.DefaultPlantSpacingM, opt.PlantSpacing)
	assert.True(t, opt.Recluster)
	assert.False(t, opt.PlaceMissingPlants)
}

package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/field/fieldtest"
	"github.com/1F47E/fieldmap/pkg/models"
)

func reconstruct(t *testing.T) *field.Field {
	t.Helper()
	in := fieldtest.TwoRows(true).Input(fieldtest.ExpectedCounts)
	f, err := field.Reconstruct(logs.NewTestingLog(t), in, fieldtest.Options())
	require.NoError(t, err)
	return f
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, csvHeader, records[0])
	return records[1:]
}

func column(name string) int {
	for i, c := range csvHeader {
		if c == name {
			return i
		}
	}
	panic("no column " + name)
}

func TestNumbered(t *testing.T) {
	f := reconstruct(t)
	items := Numbered(f)
	require.Len(t, items, 13)
	for i, item := range items {
		assert.Equal(t, i+1, item.NumberWithinField)
	}
}

func TestWriteAll(t *testing.T) {
	f := reconstruct(t)
	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, f))

	records := readCSV(t, buf.Bytes())
	// 13 numbered items plus one duplicate detection
	require.Len(t, records, 14)

	number, id, canonical := column("number_within_field"), column("id"), column("canonical_id")
	var dupLines [][]string
	for _, r := range records {
		if r[number] == "4" {
			dupLines = append(dupLines, r)
		}
	}
	require.Len(t, dupLines, 2)
	assert.Equal(t, dupLines[0][id], dupLines[0][canonical])
	assert.Equal(t, dupLines[0][canonical], dupLines[1][canonical])
	assert.NotEqual(t, dupLines[1][id], dupLines[1][canonical])
	assert.Equal(t, "4.0000", dupLines[0][column("y")])
	assert.Equal(t, "4.0500", dupLines[1][column("y")])
	assert.Equal(t, "1", dupLines[0][column("row")])
	assert.Equal(t, "Plant", dupLines[0][column("kind")])
}

func TestWriteAveraged(t *testing.T) {
	f := reconstruct(t)
	var buf bytes.Buffer
	require.NoError(t, WriteAveraged(&buf, f))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 13)
	for i, r := range records {
		assert.Equal(t, strconv.Itoa(i+1), r[column("number_within_field")])
	}
	assert.Equal(t, "4.0250", records[3][column("y")])
	assert.Equal(t, "GroupCode", records[2][column("kind")])
	assert.Equal(t, "1A", records[2][column("name")])

	// averaging leaves the canonical item untouched
	for _, item := range f.Canonical {
		if item.NumberWithinField == 4 {
			assert.Equal(t, 4.0, item.Position.Y)
		}
	}
}

func TestAverage(t *testing.T) {
	reg := models.NewRegistry()
	a := &models.FieldItem{Position: models.Vec3{X: 1, Y: 2}, Size: [2]float64{0.1, 0.2}, Area: 1}
	b := &models.FieldItem{Position: models.Vec3{X: 3, Y: 4}, Size: [2]float64{0.3, 0.4}, Area: 3}
	reg.Add(a)
	reg.Add(b)
	a.OtherItems = []models.ItemID{b.ID}

	avg := Average(reg, a)
	assert.Same(t, a, avg.Item)
	assert.InDelta(t, 2.0, avg.Position.X, 1e-9)
	assert.InDelta(t, 3.0, avg.Position.Y, 1e-9)
	assert.InDelta(t, 0.2, avg.Size[0], 1e-9)
	assert.InDelta(t, 0.3, avg.Size[1], 1e-9)
	assert.InDelta(t, 2.0, avg.Area, 1e-9)
}

func TestWriteCSVFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	paths, err := WriteCSVFiles(dir, reconstruct(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "results_all.csv"),
		filepath.Join(dir, "results_averaged.csv"),
	}, paths)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := reconstruct(t)
	filename := filepath.Join(t.TempDir(), "field.gob")
	require.NoError(t, SaveSnapshot(filename, f))

	loaded, err := LoadSnapshot(filename)
	require.NoError(t, err)

	assert.Equal(t, f.RunID, loaded.RunID)
	assert.Equal(t, f.Registry.Len(), loaded.Registry.Len())
	require.Len(t, loaded.Canonical, len(f.Canonical))
	for i, item := range f.Canonical {
		assert.Equal(t, *item, *loaded.Canonical[i])
	}
	assert.Equal(t, f.Inventory.MissingGroups, loaded.Inventory.MissingGroups)

	require.Len(t, loaded.Rows, 2)
	require.Len(t, loaded.Groups, 3)
	for i, g := range f.Groups {
		assert.Equal(t, g.Name(), loaded.Groups[i].Name())
		assert.InDelta(t, g.Length(), loaded.Groups[i].Length(), 1e-9)
	}
	// groups share segments with rows and segments share items with the registry
	assert.Same(t, loaded.Rows[0].Segments[2], loaded.Groups[1].Segments[0])
	assert.Same(t, loaded.Rows[1].Segments[0], loaded.Groups[1].Segments[1])
	code := loaded.Rows[0].Segments[1].StartCode
	assert.Same(t, loaded.Registry.Get(code.ID), code)
	assert.Same(t, code, loaded.Rows[0].Segments[0].EndCode)
}

func TestSnapshotKeepsRunSummary(t *testing.T) {
	scene := fieldtest.TwoRows(false)
	scene.See(models.KindPlant, "", 2, 5)
	scene.See(models.KindRowCode, "row3", 2, 0)
	scene.See(models.KindPlant, "", 2, 2)
	opt := fieldtest.Options()
	opt.PlaceMissingPlants = true
	f, err := field.Reconstruct(logs.NewTestingLog(t), scene.Input(fieldtest.ExpectedCounts), opt)
	require.NoError(t, err)
	require.NotNil(t, f.OpenRow)
	require.Len(t, f.Outside, 1)
	require.Len(t, f.Placed, 2)

	filename := filepath.Join(t.TempDir(), "field.gob")
	require.NoError(t, SaveSnapshot(filename, f))
	loaded, err := LoadSnapshot(filename)
	require.NoError(t, err)

	require.NotNil(t, loaded.OpenRow)
	assert.Equal(t, 3, loaded.OpenRow.Number())
	assert.Nil(t, loaded.OpenRow.EndCode)
	assert.Same(t, loaded.Registry.Get(f.OpenRow.StartCode.ID), loaded.OpenRow.StartCode)
	assert.Equal(t, ids(f.OpenRow.Items), ids(loaded.OpenRow.Items))
	assert.Equal(t, ids(f.Outside), ids(loaded.Outside))
	assert.Equal(t, ids(f.Placed), ids(loaded.Placed))
	assert.Same(t, loaded.Registry.Get(f.Placed[0].ID), loaded.Placed[0])
	assert.Equal(t, f.Demoted, loaded.Demoted)
	assert.Equal(t, f.Flagged, loaded.Flagged)
	assert.Equal(t, f.MaxCodeSeparation, loaded.MaxCodeSeparation)

	// a field without an open row stays that way
	closed := reconstruct(t)
	restored, err := NewSnapshot(closed).Restore()
	require.NoError(t, err)
	assert.Nil(t, restored.OpenRow)
	assert.Empty(t, restored.Outside)
}

func TestSnapshotRestoreRejectsBadReferences(t *testing.T) {
	f := reconstruct(t)

	s := NewSnapshot(f)
	s.Groups[0].Segments[0].Row = 9
	_, err := s.Restore()
	assert.Error(t, err)

	s = NewSnapshot(f)
	s.Canonical = append(s.Canonical, 999)
	_, err = s.Restore()
	assert.Error(t, err)

	s = NewSnapshot(f)
	s.RunID = "not-a-uuid"
	_, err = s.Restore()
	assert.Error(t, err)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	f := reconstruct(t)
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "field.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveField(f))
	runID := f.RunID.String()

	total, err := store.ItemCount(runID, false)
	require.NoError(t, err)
	assert.Equal(t, 14, total)

	canonical, err := store.ItemCount(runID, true)
	require.NoError(t, err)
	assert.Equal(t, 13, canonical)

	groups, err := store.Groups(runID)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "1A", groups[0].Name)
	assert.Equal(t, 1, groups[0].ID)
	assert.InDelta(t, 3.0, groups[0].Length, 1e-9)
	assert.Empty(t, groups[0].Flags)

	// the run id is the primary key of a run
	assert.Error(t, store.SaveField(f))

	other, err := store.ItemCount("unknown", false)
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

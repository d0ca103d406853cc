package stitch

import (
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
)

func code(kind models.ItemKind, name string) *models.FieldItem {
	return &models.FieldItem{Kind: kind, Name: name}
}

func seg(row int, start, end *models.FieldItem, items ...*models.FieldItem) *models.Segment {
	return &models.Segment{StartCode: start, EndCode: end, Row: row, Items: items}
}

// newRow returns a row whose segments are given in traversal order
func newRow(number string, dir models.Direction, segs ...*models.Segment) *models.Row {
	rc := code(models.KindRowCode, number)
	return &models.Row{StartCode: rc, EndCode: code(models.KindRowCode, number), Direction: dir, Segments: segs}
}

func TestClassify(t *testing.T) {
	r := code(models.KindRowCode, "row1")
	g := code(models.KindGroupCode, "1A")

	c, err := Classify(seg(1, g, g))
	require.NoError(t, err)
	assert.Equal(t, Single, c)

	c, err = Classify(seg(1, r, g))
	require.NoError(t, err)
	assert.Equal(t, Start, c)

	c, err = Classify(seg(1, g, r))
	require.NoError(t, err)
	assert.Equal(t, End, c)

	_, err = Classify(seg(1, r, r))
	assert.True(t, errors.Is(err, ErrFullRowSegment))
}

func TestFieldPasses(t *testing.T) {
	r1, r2, r3, r4 := newRow("row1", models.Up), newRow("row2", models.Back), newRow("row3", models.Up), newRow("row4", models.Back)

	passes := FieldPasses([]*models.Row{r3, r1, r4, r2}, 1)
	require.Len(t, passes, 2)
	assert.Equal(t, []*models.Row{r1, r2}, passes[0].Rows)
	assert.Equal(t, []*models.Row{r3, r4}, passes[1].Rows)
	assert.Same(t, r2, passes[0].Other(r1))

	passes = FieldPasses([]*models.Row{r1, r2, r3}, 2)
	require.Len(t, passes, 2)
	assert.Equal(t, -1, passes[0].Index)
	assert.Equal(t, []*models.Row{r1}, passes[0].Rows)
	assert.Nil(t, passes[0].Other(r1))
	assert.Equal(t, []*models.Row{r2, r3}, passes[1].Rows)
}

func TestStitchAcrossPass(t *testing.T) {
	a := code(models.KindGroupCode, "1A")
	b := code(models.KindGroupCode, "2A")
	c := code(models.KindGroupCode, "3A")
	p1 := &models.FieldItem{Kind: models.KindPlant}
	p2 := &models.FieldItem{Kind: models.KindPlant}

	r1 := newRow("row1", models.Up)
	r1.Segments = []*models.Segment{
		seg(1, r1.StartCode, a),
		seg(1, a, b, p1),
		seg(1, b, r1.EndCode),
	}
	r2 := newRow("row2", models.Back)
	r2.Segments = []*models.Segment{
		seg(2, r2.EndCode, c, p2),
		seg(2, c, r2.StartCode),
	}

	var rep report.Report
	groups, err := Stitch(logs.NewTestingLog(t), []*models.Row{r2, r1}, 1, &rep)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "1A", groups[0].Name())
	assert.Equal(t, []*models.Segment{r1.Segments[1]}, groups[0].Segments)

	assert.Equal(t, "2A", groups[1].Name())
	assert.Equal(t, []*models.Segment{r1.Segments[2], r2.Segments[0]}, groups[1].Segments)

	assert.Equal(t, "3A", groups[2].Name())
	assert.Equal(t, []*models.Segment{r2.Segments[1], r1.Segments[0]}, groups[2].Segments)

	for i, g := range groups {
		assert.Equal(t, models.GroupID(i+1), g.ID)
		assert.Empty(t, g.Flags)
		for _, s := range g.Segments {
			assert.Equal(t, g.ID, s.Group)
		}
	}
	assert.Equal(t, models.GroupID(1), p1.Group)
	assert.Equal(t, models.GroupID(2), p2.Group)
	assert.Equal(t, models.GroupID(2), b.Group)
	assert.Empty(t, rep.Anomalies)
}

func TestStitchLastPassDemotes(t *testing.T) {
	d := code(models.KindGroupCode, "4A")
	r3 := newRow("row3", models.Up)
	r3.Segments = []*models.Segment{
		seg(3, r3.StartCode, d),
		seg(3, d, r3.EndCode),
	}

	var rep report.Report
	groups, err := Stitch(logs.NewTestingLog(t), []*models.Row{r3}, 1, &rep)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []*models.Segment{r3.Segments[1]}, groups[0].Segments)
	assert.True(t, groups[0].HasFlag(models.FlagTruncated))
	assert.Equal(t, 1, rep.Count(report.UnmatchedEndSegment))
	assert.Equal(t, 1, rep.Count(report.OrphanStartSegment))
}

func TestStitchSameDirectionDemotes(t *testing.T) {
	a := code(models.KindGroupCode, "1A")
	c := code(models.KindGroupCode, "3A")
	r1 := newRow("row1", models.Up)
	r1.Segments = []*models.Segment{seg(1, a, r1.EndCode)}
	r2 := newRow("row2", models.Up)
	r2.Segments = []*models.Segment{seg(2, r2.StartCode, c), seg(2, c, c)}

	var rep report.Report
	groups, err := Stitch(logs.NewTestingLog(t), []*models.Row{r1, r2}, 1, &rep)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].HasFlag(models.FlagTruncated))
	assert.Len(t, groups[0].Segments, 1)
	assert.Equal(t, 1, rep.Count(report.UnmatchedEndSegment))
}

func TestStitchFullRowSegment(t *testing.T) {
	r1 := newRow("row1", models.Up)
	r1.Segments = []*models.Segment{seg(1, r1.StartCode, r1.EndCode)}

	var rep report.Report
	_, err := Stitch(logs.NewTestingLog(t), []*models.Row{r1}, 1, &rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFullRowSegment))
}

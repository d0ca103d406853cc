package rows

import (
	"sort"

	"github.com/cyclopcam/logs"

	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
)

// Convention describes how rows were driven. The vehicle starts on FirstRow
// travelling up the field and moves RowStep rows at every turnaround, so the
// travel direction alternates from one visited row to the next.
type Convention struct {
	FirstRow int
	RowStep  int
	RowCount int
}

// DirectionFor returns the travel direction of a row number
func (c Convention) DirectionFor(number int) models.Direction {
	step := c.RowStep
	if step <= 0 {
		step = 1
	}
	idx := (number - c.FirstRow) / step
	if number < c.FirstRow {
		idx = (number - c.FirstRow - step + 1) / step
	}
	if idx%2 == 0 {
		return models.Up
	}
	return models.Back
}

// Contains reports whether the row number is inside the configured field
func (c Convention) Contains(number int) bool {
	if c.RowCount <= 0 {
		return true
	}
	return number >= c.FirstRow && number < c.FirstRow+c.RowCount
}

// AssignDirections sets each row's direction and orients its codes relative to
// the field: the stream sees a back row's codes in reverse, so they are
// swapped. Rows outside the field are reported but kept.
func AssignDirections(log logs.Log, rows []*models.Row, conv Convention, rep *report.Report) {
	for _, row := range rows {
		n := row.Number()
		if !conv.Contains(n) {
			a := rep.Add(report.BadRowCode, row.StartCode, n,
				"row %d is outside the configured field (%d rows from %d)", n, conv.RowCount, conv.FirstRow)
			log.Warnf("%v", a)
		}
		row.Direction = conv.DirectionFor(n)
		if row.Direction == models.Back {
			row.StartCode, row.EndCode = row.EndCode, row.StartCode
		}
	}
}

// SortByNumber returns the rows ordered by row number. Rows with the same
// number keep their stream order.
func SortByNumber(rows []*models.Row) []*models.Row {
	out := append([]*models.Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number() < out[j].Number() })
	return out
}

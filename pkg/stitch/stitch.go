// Package stitch joins plant group segments into complete plant groups,
// including groups that wrap from one row of a field pass into the other.
package stitch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cyclopcam/logs"

	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
	"github.com/1F47E/fieldmap/pkg/rows"
)

// ErrFullRowSegment is returned when a segment spans a whole row without any
// group code. Such a group cannot be named, so stitching stops.
var ErrFullRowSegment = errors.New("segment spans an entire row with no group code")

// RowsPerPass is the number of rows planted in one pass of the planter
const RowsPerPass = 2

// Class describes how a segment relates to the group it belongs to
type Class int

const (
	// Single segments are bounded by two group codes and form a whole group
	Single Class = iota
	// Start segments begin at a row code: they continue a group from the other row
	Start
	// End segments end at a row code: their group continues in the other row
	End
)

func (c Class) String() string {
	switch c {
	case Start:
		return "start"
	case End:
		return "end"
	}
	return "single"
}

// Classify returns the class of a segment from its boundary code kinds
func Classify(s *models.Segment) (Class, error) {
	startRow := s.StartCode.Kind == models.KindRowCode
	endRow := s.EndCode.Kind == models.KindRowCode
	switch {
	case startRow && endRow:
		return 0, fmt.Errorf("row %d: %w", s.Row, ErrFullRowSegment)
	case startRow:
		return Start, nil
	case endRow:
		return End, nil
	}
	return Single, nil
}

// Pass is one pass of the planter: up to RowsPerPass rows, ordered by number
type Pass struct {
	Index int
	Rows  []*models.Row
}

// Other returns the row of the pass that is not r, or nil
func (p *Pass) Other(r *models.Row) *models.Row {
	for _, row := range p.Rows {
		if row != r {
			return row
		}
	}
	return nil
}

// FieldPasses bundles rows into passes of consecutive row numbers counted
// from firstRow.
func FieldPasses(rowList []*models.Row, firstRow int) []*Pass {
	byIndex := map[int]*Pass{}
	for _, row := range rows.SortByNumber(rowList) {
		idx := floorDiv(row.Number()-firstRow, RowsPerPass)
		p := byIndex[idx]
		if p == nil {
			p = &Pass{Index: idx}
			byIndex[idx] = p
		}
		p.Rows = append(p.Rows, row)
	}
	passes := make([]*Pass, 0, len(byIndex))
	for _, p := range byIndex {
		passes = append(passes, p)
	}
	sort.Slice(passes, func(i, j int) bool { return passes[i].Index < passes[j].Index })
	return passes
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Stitch turns the segments of all rows into plant groups. An end segment is
// joined to the first segment of the other row in its pass when that row runs
// the opposite way and starts with an unclaimed start segment; otherwise it is
// kept as a truncated single-segment group. Start segments that nothing claims
// are reported and excluded.
func Stitch(log logs.Log, rowList []*models.Row, firstRow int, rep *report.Report) ([]*models.PlantGroup, error) {
	classes := map[*models.Segment]Class{}
	for _, row := range rowList {
		for _, s := range row.Segments {
			c, err := Classify(s)
			if err != nil {
				return nil, err
			}
			classes[s] = c
		}
	}

	passOf := map[*models.Row]*Pass{}
	for _, p := range FieldPasses(rowList, firstRow) {
		for _, r := range p.Rows {
			passOf[r] = p
		}
	}

	var groups []*models.PlantGroup
	claimed := map[*models.Segment]bool{}
	add := func(segs ...*models.Segment) *models.PlantGroup {
		g := &models.PlantGroup{ID: models.GroupID(len(groups) + 1), Segments: segs}
		attach(g)
		groups = append(groups, g)
		return g
	}

	for _, row := range rows.SortByNumber(rowList) {
		for _, s := range row.Segments {
			switch classes[s] {
			case Single:
				add(s)
			case End:
				next, reason := continuation(row, passOf[row], classes, claimed)
				if next == nil {
					g := add(s)
					g.AddFlag(models.FlagTruncated)
					a := rep.Add(report.UnmatchedEndSegment, s.StartCode, row.Number(),
						"group %q at the end of row %d has no continuation (%s), keeping it as a single segment", s.StartCode.Name, row.Number(), reason)
					log.Warnf("%v", a)
					continue
				}
				claimed[next] = true
				add(s, next)
			}
		}
	}

	for _, row := range rowList {
		for _, s := range row.Segments {
			if classes[s] == Start && !claimed[s] {
				a := rep.Add(report.OrphanStartSegment, s.EndCode, row.Number(),
					"segment before %q in row %d continues no group", s.EndCode.Name, row.Number())
				log.Warnf("%v", a)
			}
		}
	}
	return groups, nil
}

// continuation finds the segment that continues an end segment of row
func continuation(row *models.Row, pass *Pass, classes map[*models.Segment]Class, claimed map[*models.Segment]bool) (*models.Segment, string) {
	if pass == nil {
		return nil, "row is in no pass"
	}
	other := pass.Other(row)
	switch {
	case other == nil:
		return nil, "no other row in its pass"
	case other.Direction == row.Direction:
		return nil, fmt.Sprintf("row %d runs the same direction", other.Number())
	case len(other.Segments) == 0:
		return nil, fmt.Sprintf("row %d has no segments", other.Number())
	}
	first := other.Segments[0]
	if classes[first] != Start {
		return nil, fmt.Sprintf("row %d starts with a %v segment", other.Number(), classes[first])
	}
	if claimed[first] {
		return nil, fmt.Sprintf("first segment of row %d is already claimed", other.Number())
	}
	return first, ""
}

// attach records the group on its segments, their items and its code
func attach(g *models.PlantGroup) {
	for _, s := range g.Segments {
		s.Group = g.ID
		for _, item := range s.Items {
			item.Group = g.ID
		}
	}
	if c := g.Code(); c != nil {
		c.Group = g.ID
	}
}

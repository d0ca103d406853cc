// Package segment slices rows into plant group segments at group codes.
package segment

import (
	"math"
	"sort"

	"github.com/cyclopcam/logs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
)

// Projection locates a point relative to a row line
type Projection struct {
	// Along is the distance from the row start, measured along the row
	Along float64
	// Lateral is the signed distance from the row segment. Positive is to the
	// left of the start->end direction.
	Lateral float64
}

func planar(v models.Vec3) r2.Vec {
	return r2.Vec{X: v.X, Y: v.Y}
}

// ProjectOnto projects p onto the line segment start->end
func ProjectOnto(p, start, end models.Vec3) Projection {
	s, e, q := planar(start), planar(end), planar(p)
	w := r2.Sub(q, s)
	line := r2.Sub(e, s)
	length := r2.Norm(line)
	if length == 0 {
		return Projection{Along: 0, Lateral: r2.Norm(w)}
	}
	unit := r2.Scale(1/length, line)
	along := r2.Dot(w, unit)
	cross := r2.Cross(unit, w)

	var lateral float64
	switch {
	case along < 0:
		lateral = r2.Norm(w)
	case along > length:
		lateral = r2.Norm(r2.Sub(q, e))
	default:
		lateral = math.Abs(cross)
	}
	if cross < 0 {
		lateral = -lateral
	}
	return Projection{Along: along, Lateral: lateral}
}

// Assignment is a group code placed on a row
type Assignment struct {
	Code *models.FieldItem
	Projection
}

// AssignCodes places every group code on the row it is laterally closest to.
// Codes further than tolerance (meters) from every row are reported and left
// out. The result is keyed by row index.
func AssignCodes(log logs.Log, rows []*models.Row, codes []*models.FieldItem, tolerance float64, rep *report.Report) map[int][]Assignment {
	out := make(map[int][]Assignment)
	for _, code := range codes {
		best := -1
		var bestProj Projection
		for i, row := range rows {
			proj := ProjectOnto(code.Position, row.StartCode.Position, row.EndCode.Position)
			if best < 0 || math.Abs(proj.Lateral) < math.Abs(bestProj.Lateral) {
				best, bestProj = i, proj
			}
		}
		if best < 0 || math.Abs(bestProj.Lateral) > tolerance {
			a := rep.Add(report.UnassignableCode, code, 0,
				"group code %q is %.2f m from the nearest row, tolerance %.2f m", code.Name, math.Abs(bestProj.Lateral), tolerance)
			log.Warnf("%v", a)
			continue
		}
		out[best] = append(out[best], Assignment{Code: code, Projection: bestProj})
	}
	return out
}

// Build assigns the group codes to rows and slices every row into segments,
// stored on the row in traversal order. Plants and gaps of the row are placed
// into the segment whose span contains them.
func Build(log logs.Log, rows []*models.Row, codes []*models.FieldItem, tolerance float64, rep *report.Report) {
	assigned := AssignCodes(log, rows, codes, tolerance, rep)
	for i, row := range rows {
		buildRow(row, assigned[i])
		log.Debugf("Row %d (%v): %d group codes, %d segments", row.Number(), row.Direction, len(assigned[i]), len(row.Segments))
	}
}

func buildRow(row *models.Row, assigned []Assignment) {
	length := row.Length()
	// codes accepted just outside the row ends sit on the nearest end
	for i := range assigned {
		assigned[i].Along = math.Max(0, math.Min(assigned[i].Along, length))
	}
	sort.SliceStable(assigned, func(a, b int) bool { return assigned[a].Along < assigned[b].Along })

	// boundaries and their positions along the row, in field order
	codes := []*models.FieldItem{row.StartCode}
	along := []float64{0}
	for _, a := range assigned {
		codes = append(codes, a.Code)
		along = append(along, a.Along)
	}
	codes = append(codes, row.EndCode)
	along = append(along, length)

	number := row.Number()
	for _, c := range codes {
		c.Row = number
	}
	n := len(codes) - 1
	segments := make([]*models.Segment, n)
	for i := 0; i < n; i++ {
		segments[i] = &models.Segment{StartCode: codes[i], EndCode: codes[i+1], Row: number}
	}

	type placed struct {
		item  *models.FieldItem
		along float64
	}
	var items []placed
	for _, item := range row.Items {
		if item.Kind == models.KindPlant || item.Kind == models.KindGap {
			p := ProjectOnto(item.Position, row.StartCode.Position, row.EndCode.Position)
			items = append(items, placed{item, p.Along})
		}
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].along < items[b].along })
	for _, p := range items {
		// first boundary strictly past the item, minus one
		idx := sort.Search(len(along), func(k int) bool { return along[k] > p.along }) - 1
		idx = max(0, min(idx, n-1))
		p.item.Row = number
		segments[idx].Items = append(segments[idx].Items, p.item)
	}

	if row.Direction == models.Back {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			segments[i], segments[j] = segments[j], segments[i]
		}
		for _, s := range segments {
			s.StartCode, s.EndCode = s.EndCode, s.StartCode
			reverse(s.Items)
		}
	}
	row.Segments = segments
}

func reverse(items []*models.FieldItem) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

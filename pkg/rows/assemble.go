// Package rows partitions an acquisition-ordered stream of canonical items
// into rows delimited by paired row codes.
package rows

import (
	"github.com/cyclopcam/logs"

	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
)

// Result is the output of row assembly
type Result struct {
	// Rows closed by a matching end code, in stream order
	Rows []*models.Row
	// OpenRow is the row still open when the stream ended. It is excluded
	// from further processing.
	OpenRow *models.Row
	// Outside holds plants and gaps seen while no row was open
	Outside []*models.FieldItem
}

// Assemble runs the row state machine over the items in the order given.
func Assemble(log logs.Log, items []*models.FieldItem, rep *report.Report) Result {
	var (
		res     Result
		current *models.Row
		number  int
	)

	for _, item := range items {
		if item.Kind == models.KindRowCode {
			n, err := item.RowNumber()
			if err != nil {
				log.Warnf("%v", rep.Add(report.BadRowCode, item, 0, "ignoring row code: %v", err))
				continue
			}
			switch {
			case current == nil:
				current = &models.Row{StartCode: item}
				number = n
			case n == number:
				current.EndCode = item
				res.Rows = append(res.Rows, current)
				current = nil
			default:
				a := rep.Add(report.MissingRowEnd, item, number,
					"hit code for row %d while row %d is open, likely missed its end code", n, number)
				log.Warnf("%v", a)
			}
			continue
		}

		if current != nil {
			current.Items = append(current.Items, item)
			continue
		}
		if item.Kind == models.KindGroupCode {
			a := rep.Add(report.MissingRowStart, item, 0,
				"group code %q outside of any row, likely missed a row start code", item.Name)
			log.Warnf("%v", a)
			continue
		}
		res.Outside = append(res.Outside, item)
	}

	if len(res.Outside) > 0 {
		rep.Add(report.OutsideRow, nil, 0, "%d plants/gaps found outside of rows", len(res.Outside))
		log.Infof("Detected %d items outside of rows", len(res.Outside))
	}
	if current != nil {
		res.OpenRow = current
		a := rep.Add(report.OpenRowAtEnd, current.StartCode, number,
			"ended in the middle of row %d, it will not be processed (start image %s)", number, current.StartCode.ImageFile)
		log.Warnf("%v", a)
	}
	return res
}

package validate

import (
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/rows"
)

// Counter hands out field-wide item numbers
type Counter struct {
	next int
}

// NewCounter returns a counter whose first number is start
func NewCounter(start int) *Counter {
	return &Counter{next: start}
}

// Next returns the next number
func (c *Counter) Next() int {
	n := c.next
	c.next++
	return n
}

// RowSequence returns the items of a row in traversal order: every segment's
// start code and items, then the end code of the last segment.
func RowSequence(row *models.Row) []*models.FieldItem {
	var seq []*models.FieldItem
	for _, s := range row.Segments {
		seq = append(seq, s.StartCode)
		seq = append(seq, s.Items...)
	}
	if n := len(row.Segments); n > 0 {
		seq = append(seq, row.Segments[n-1].EndCode)
	}
	return seq
}

// NumberRows numbers every item of the rows, in row number order. Within a row
// items are numbered from 1 in the direction the row was travelled.
func NumberRows(rowList []*models.Row, counter *Counter) {
	for _, row := range rows.SortByNumber(rowList) {
		for i, item := range RowSequence(row) {
			item.NumberWithinField = counter.Next()
			item.NumberWithinRow = i + 1
		}
	}
}

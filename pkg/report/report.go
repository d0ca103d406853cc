// Package report collects data anomalies found while reconstructing a field.
// Anomalies never stop a run; the affected unit is excluded and the rest of the
// field is kept.
package report

import (
	"fmt"

	"github.com/1F47E/fieldmap/pkg/models"
)

// Kind classifies an anomaly
type Kind string

const (
	MissingRowEnd       Kind = "missing_row_end"
	MissingRowStart     Kind = "missing_row_start"
	OutsideRow          Kind = "outside_row"
	OpenRowAtEnd        Kind = "open_row_at_end"
	UnassignableCode    Kind = "unassignable_code"
	UnmatchedEndSegment Kind = "unmatched_end_segment"
	OrphanStartSegment  Kind = "orphan_start_segment"
	SkippedImage        Kind = "skipped_image"
	BadRowCode          Kind = "bad_row_code"
)

// Anomaly is one data problem, optionally pointing at the item that caused it
type Anomaly struct {
	Kind    Kind
	Item    models.ItemID
	Row     int
	Message string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %s", a.Kind, a.Message)
}

// Report accumulates anomalies in the order they were found
type Report struct {
	Anomalies []Anomaly
}

// Add records an anomaly and returns it so callers can log it
func (r *Report) Add(kind Kind, item *models.FieldItem, row int, format string, args ...any) Anomaly {
	a := Anomaly{
		Kind:    kind,
		Row:     row,
		Message: fmt.Sprintf(format, args...),
	}
	if item != nil {
		a.Item = item.ID
	}
	r.Anomalies = append(r.Anomalies, a)
	return a
}

// Count returns how many anomalies of the given kind were recorded
func (r *Report) Count(kind Kind) int {
	n := 0
	for _, a := range r.Anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Of returns the anomalies of the given kind
func (r *Report) Of(kind Kind) []Anomaly {
	var out []Anomaly
	for _, a := range r.Anomalies {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

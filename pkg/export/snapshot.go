package export

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
	"github.com/1F47E/fieldmap/pkg/validate"
)

// Snapshot is the serializable form of a field. Items are stored once and
// everything else refers to them by ID.
type Snapshot struct {
	RunID     string
	Items     []models.FieldItem
	Canonical []models.ItemID
	Rows      []RowData
	Groups    []GroupData
	// OpenRow is nil when every row was closed
	OpenRow   *RowData
	Outside   []models.ItemID
	Placed    []models.ItemID
	Anomalies []report.Anomaly
	Inventory validate.Inventory

	Demoted           int
	Flagged           int
	MaxCodeSeparation float64
}

// RowData is a row by item IDs. EndCode is zero for an open row.
type RowData struct {
	StartCode models.ItemID
	EndCode   models.ItemID
	Direction models.Direction
	Items     []models.ItemID
	Segments  []SegmentData
}

type SegmentData struct {
	StartCode models.ItemID
	EndCode   models.ItemID
	Items     []models.ItemID
	Group     models.GroupID
	Row       int
}

// SegmentRef locates a segment by row and segment index
type SegmentRef struct {
	Row   int
	Index int
}

type GroupData struct {
	ID             models.GroupID
	Segments       []SegmentRef
	ExpectedCount  int
	ExpectedLength float64
	Flags          []models.GroupFlag
}

func ids(items []*models.FieldItem) []models.ItemID {
	out := make([]models.ItemID, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func idOf(item *models.FieldItem) models.ItemID {
	if item == nil {
		return 0
	}
	return item.ID
}

func rowData(row *models.Row) RowData {
	return RowData{
		StartCode: idOf(row.StartCode),
		EndCode:   idOf(row.EndCode),
		Direction: row.Direction,
		Items:     ids(row.Items),
	}
}

// NewSnapshot flattens a field
func NewSnapshot(f *field.Field) *Snapshot {
	s := &Snapshot{
		RunID:     f.RunID.String(),
		Canonical: ids(f.Canonical),
		Outside:   ids(f.Outside),
		Placed:    ids(f.Placed),
		Anomalies: f.Report.Anomalies,
		Inventory: f.Inventory,

		Demoted:           f.Demoted,
		Flagged:           f.Flagged,
		MaxCodeSeparation: f.MaxCodeSeparation,
	}
	if f.OpenRow != nil {
		open := rowData(f.OpenRow)
		s.OpenRow = &open
	}
	for _, item := range f.Registry.Items() {
		s.Items = append(s.Items, *item)
	}

	refs := map[*models.Segment]SegmentRef{}
	for ri, row := range f.Rows {
		rd := rowData(row)
		for si, seg := range row.Segments {
			refs[seg] = SegmentRef{Row: ri, Index: si}
			rd.Segments = append(rd.Segments, SegmentData{
				StartCode: seg.StartCode.ID,
				EndCode:   seg.EndCode.ID,
				Items:     ids(seg.Items),
				Group:     seg.Group,
				Row:       seg.Row,
			})
		}
		s.Rows = append(s.Rows, rd)
	}
	for _, g := range f.Groups {
		gd := GroupData{
			ID:             g.ID,
			ExpectedCount:  g.ExpectedCount,
			ExpectedLength: g.ExpectedLength,
			Flags:          g.Flags,
		}
		for _, seg := range g.Segments {
			gd.Segments = append(gd.Segments, refs[seg])
		}
		s.Groups = append(s.Groups, gd)
	}
	return s
}

// Restore rebuilds the field with shared pointers between rows, segments and
// groups
func (s *Snapshot) Restore() (*field.Field, error) {
	runID, err := uuid.Parse(s.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id: %w", err)
	}
	f := &field.Field{
		RunID:     runID,
		Registry:  models.NewRegistry(),
		Report:    &report.Report{Anomalies: s.Anomalies},
		Inventory: s.Inventory,

		Demoted:           s.Demoted,
		Flagged:           s.Flagged,
		MaxCodeSeparation: s.MaxCodeSeparation,
	}
	for i := range s.Items {
		item := s.Items[i]
		f.Registry.Add(&item)
	}
	lookup := func(id models.ItemID) (*models.FieldItem, error) {
		item := f.Registry.Get(id)
		if item == nil {
			return nil, fmt.Errorf("snapshot references unknown item %d", id)
		}
		return item, nil
	}
	lookupAll := func(list []models.ItemID) ([]*models.FieldItem, error) {
		out := make([]*models.FieldItem, 0, len(list))
		for _, id := range list {
			item, err := lookup(id)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}

	restoreRow := func(rd RowData) (*models.Row, error) {
		var err error
		row := &models.Row{Direction: rd.Direction}
		if row.StartCode, err = lookup(rd.StartCode); err != nil {
			return nil, err
		}
		if rd.EndCode != 0 {
			if row.EndCode, err = lookup(rd.EndCode); err != nil {
				return nil, err
			}
		}
		if row.Items, err = lookupAll(rd.Items); err != nil {
			return nil, err
		}
		for _, sd := range rd.Segments {
			seg := &models.Segment{Group: sd.Group, Row: sd.Row}
			if seg.StartCode, err = lookup(sd.StartCode); err != nil {
				return nil, err
			}
			if seg.EndCode, err = lookup(sd.EndCode); err != nil {
				return nil, err
			}
			if seg.Items, err = lookupAll(sd.Items); err != nil {
				return nil, err
			}
			row.Segments = append(row.Segments, seg)
		}
		return row, nil
	}

	if f.Canonical, err = lookupAll(s.Canonical); err != nil {
		return nil, err
	}
	if f.Outside, err = lookupAll(s.Outside); err != nil {
		return nil, err
	}
	if f.Placed, err = lookupAll(s.Placed); err != nil {
		return nil, err
	}
	for _, rd := range s.Rows {
		row, err := restoreRow(rd)
		if err != nil {
			return nil, err
		}
		f.Rows = append(f.Rows, row)
	}
	if s.OpenRow != nil {
		if f.OpenRow, err = restoreRow(*s.OpenRow); err != nil {
			return nil, err
		}
	}
	for _, gd := range s.Groups {
		g := &models.PlantGroup{
			ID:             gd.ID,
			ExpectedCount:  gd.ExpectedCount,
			ExpectedLength: gd.ExpectedLength,
			Flags:          gd.Flags,
		}
		for _, ref := range gd.Segments {
			if ref.Row < 0 || ref.Row >= len(f.Rows) || ref.Index < 0 || ref.Index >= len(f.Rows[ref.Row].Segments) {
				return nil, fmt.Errorf("group %d references missing segment %v", gd.ID, ref)
			}
			g.Segments = append(g.Segments, f.Rows[ref.Row].Segments[ref.Index])
		}
		f.Groups = append(f.Groups, g)
	}
	return f, nil
}

// SaveSnapshot writes the field to a binary file
func SaveSnapshot(filename string, f *field.Field) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(NewSnapshot(f)); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return nil
}

// LoadSnapshot reads a field written by SaveSnapshot
func LoadSnapshot(filename string) (*field.Field, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var s Snapshot
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return s.Restore()
}

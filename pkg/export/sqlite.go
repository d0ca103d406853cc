package export

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
)

// schema.sql creates one table per record type, every row keyed by run id so
// several runs can share a database.
//
//go:embed schema.sql
var schemaSQL string

type SQLiteStore struct {
	*sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db}, nil
}

// canonicalOf maps every item ID to the ID of the canonical item it belongs to
func canonicalOf(f *field.Field) map[models.ItemID]models.ItemID {
	out := map[models.ItemID]models.ItemID{}
	for _, item := range f.Canonical {
		out[item.ID] = item.ID
		for _, id := range item.OtherItems {
			out[id] = item.ID
		}
	}
	return out
}

// SaveField stores the run, its items, groups and anomalies in one transaction
func (s *SQLiteStore) SaveField(f *field.Field) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveField(tx, f); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", f.RunID, err)
	}
	return nil
}

func saveField(tx *sql.Tx, f *field.Field) error {
	runID := f.RunID.String()
	_, err := tx.Exec(`
		INSERT INTO runs (run_id, item_count, row_count, group_count, anomaly_count)
		VALUES (?, ?, ?, ?, ?)
	`, runID, f.Registry.Len(), len(f.Rows), len(f.Groups), len(f.Report.Anomalies))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	itemStmt, err := tx.Prepare(`
		INSERT INTO items (run_id, item_id, canonical_id, kind, name, x, y, z, width, height, area,
			row_number, group_id, number_within_field, number_within_row, image_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	canonical := canonicalOf(f)
	for _, item := range f.Registry.Items() {
		owner, ok := canonical[item.ID]
		if !ok {
			owner = item.ID
		}
		_, err := itemStmt.Exec(runID, item.ID, owner, item.Kind.String(), item.Name,
			item.Position.X, item.Position.Y, item.Position.Z, item.Size[0], item.Size[1], item.Area,
			item.Row, item.Group, item.NumberWithinField, item.NumberWithinRow, item.ImageFile)
		if err != nil {
			return fmt.Errorf("failed to insert item %d: %w", item.ID, err)
		}
	}

	for _, g := range f.Groups {
		flags := make([]string, len(g.Flags))
		for i, flag := range g.Flags {
			flags[i] = string(flag)
		}
		_, err := tx.Exec(`
			INSERT INTO plant_groups (run_id, group_id, name, segment_count, length, expected_count, expected_length, flags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, g.ID, g.Name(), len(g.Segments), g.Length(), g.ExpectedCount, g.ExpectedLength, strings.Join(flags, ","))
		if err != nil {
			return fmt.Errorf("failed to insert group %d: %w", g.ID, err)
		}
	}

	for _, a := range f.Report.Anomalies {
		_, err := tx.Exec(`
			INSERT INTO anomalies (run_id, kind, item_id, row_number, message)
			VALUES (?, ?, ?, ?, ?)
		`, runID, string(a.Kind), a.Item, a.Row, a.Message)
		if err != nil {
			return fmt.Errorf("failed to insert anomaly: %w", err)
		}
	}
	return nil
}

// GroupRecord is one stored plant group
type GroupRecord struct {
	ID     int
	Name   string
	Length float64
	Flags  string
}

// Groups returns the groups stored for a run, ordered by id
func (s *SQLiteStore) Groups(runID string) ([]GroupRecord, error) {
	rows, err := s.Query(`
		SELECT group_id, name, length, flags FROM plant_groups
		WHERE run_id = ? ORDER BY group_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var g GroupRecord
		if err := rows.Scan(&g.ID, &g.Name, &g.Length, &g.Flags); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ItemCount returns the number of stored items of a run, optionally only
// canonical ones
func (s *SQLiteStore) ItemCount(runID string, canonicalOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM items WHERE run_id = ?"
	if canonicalOnly {
		query += " AND item_id = canonical_id"
	}
	var count int
	if err := s.QueryRow(query, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

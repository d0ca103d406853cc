package postgis

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cyclopcam/logs"
	_ "github.com/lib/pq"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
)

// Params describes the PostGIS connection and the spatial reference of the
// field coordinates
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// SRID of the easting/northing coordinates, e.g. a UTM zone
	SRID int
}

// ConnString returns the lib/pq connection string for the params
func (p Params) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Database)
}

type Exporter struct {
	db   *sql.DB
	srid int
	log  logs.Log
}

// NewExporter creates a new PostGIS connection
func NewExporter(log logs.Log, p Params) (*Exporter, error) {
	db, err := sql.Open("postgres", p.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Exporter{db: db, srid: p.SRID, log: log}, nil
}

// InitSchema creates the item table if it doesn't exist
func (e *Exporter) InitSchema() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS field_items (
			run_id UUID NOT NULL,
			item_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			name TEXT,
			row_number INTEGER,
			group_id INTEGER,
			number_within_field INTEGER,
			number_within_row INTEGER,
			instances INTEGER,
			location GEOMETRY(POINTZ, %d),
			PRIMARY KEY (run_id, item_id)
		);`, e.srid),
	}

	for _, query := range queries {
		if _, err := e.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// CreateSpatialIndex creates a GIST index on the location column
func (e *Exporter) CreateSpatialIndex() error {
	query := `CREATE INDEX IF NOT EXISTS idx_field_items_location ON field_items USING GIST(location);`

	start := time.Now()
	if _, err := e.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}
	if _, err := e.db.Exec("ANALYZE field_items;"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}
	e.log.Infof("Created spatial index in %v", time.Since(start))
	return nil
}

// Record is one exported item
type Record struct {
	ItemID            models.ItemID
	Kind              string
	Name              string
	Row               int
	Group             models.GroupID
	NumberWithinField int
	NumberWithinRow   int
	Instances         int
	Position          models.Vec3
}

// Records returns one record per canonical item of the field
func Records(f *field.Field) []Record {
	out := make([]Record, 0, len(f.Canonical))
	for _, item := range f.Canonical {
		out = append(out, Record{
			ItemID:            item.ID,
			Kind:              item.Kind.String(),
			Name:              item.Name,
			Row:               item.Row,
			Group:             item.Group,
			NumberWithinField: item.NumberWithinField,
			NumberWithinRow:   item.NumberWithinRow,
			Instances:         len(f.Registry.Instances(item)),
			Position:          item.Position,
		})
	}
	return out
}

const batchSize = 10000

// ExportField inserts the canonical items of a field in batches
func (e *Exporter) ExportField(f *field.Field) error {
	records := Records(f)
	runID := f.RunID.String()

	stmt, err := e.db.Prepare(fmt.Sprintf(`
		INSERT INTO field_items (run_id, item_id, kind, name, row_number, group_id,
			number_within_field, number_within_row, instances, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, ST_SetSRID(ST_MakePoint($10, $11, $12), %d))
	`, e.srid))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStmt := tx.Stmt(stmt)

	for i, r := range records {
		_, err := txStmt.Exec(runID, int(r.ItemID), r.Kind, r.Name, r.Row, int(r.Group),
			r.NumberWithinField, r.NumberWithinRow, r.Instances, r.Position.X, r.Position.Y, r.Position.Z)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert item %d: %w", r.ItemID, err)
		}

		if (i+1)%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			tx, err = e.db.Begin()
			if err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			txStmt = tx.Stmt(stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}
	e.log.Infof("Exported %d items of run %s", len(records), runID)
	return nil
}

// Count returns the number of items stored for a run
func (e *Exporter) Count(runID string) (int64, error) {
	var count int64
	err := e.db.QueryRow("SELECT COUNT(*) FROM field_items WHERE run_id = $1", runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (e *Exporter) Close() error {
	return e.db.Close()
}

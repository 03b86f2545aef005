// Package store persists regions, widgets and module system files in SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/koios/matrx-widgets/pkg/models"
)

// SystemFile is a module asset registered in the media library
type SystemFile struct {
	Name        string    `json:"name"`
	StoredAs    string    `json:"stored_as"`
	InstalledAt time.Time `json:"installed_at"`
}

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	if err := database.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return database, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS regions (
		id     TEXT PRIMARY KEY,
		name   TEXT NOT NULL,
		width  REAL NOT NULL,
		height REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS widgets (
		id         TEXT PRIMARY KEY,
		region_id  TEXT NOT NULL REFERENCES regions(id),
		type       TEXT NOT NULL,
		duration   INTEGER NOT NULL,
		options    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_widgets_region ON widgets(region_id);
	CREATE TABLE IF NOT EXISTS system_files (
		name         TEXT PRIMARY KEY,
		stored_as    TEXT NOT NULL,
		installed_at TEXT NOT NULL
	);
	`
	_, err := d.db.Exec(query)
	return err
}

// CreateRegion inserts a region, assigning an ID when none is set
func (d *Database) CreateRegion(ctx context.Context, region *models.Region) error {
	if region.ID == "" {
		region.ID = ulid.Make().String()
	}
	query := `INSERT INTO regions (id, name, width, height) VALUES (?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, query, region.ID, region.Name, region.Width, region.Height); err != nil {
		return fmt.Errorf("failed to insert region: %w", err)
	}
	return nil
}

func (d *Database) GetRegion(ctx context.Context, id string) (*models.Region, error) {
	query := `SELECT id, name, width, height FROM regions WHERE id = ?`
	var r models.Region
	err := d.db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Name, &r.Width, &r.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("region %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}
	return &r, nil
}

// SaveWidget inserts or wholesale replaces a widget record
func (d *Database) SaveWidget(ctx context.Context, w *models.Widget) error {
	query := `
		INSERT INTO widgets (id, region_id, type, duration, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			region_id = excluded.region_id,
			type = excluded.type,
			duration = excluded.duration,
			options = excluded.options,
			updated_at = excluded.updated_at
	`
	_, err := d.db.ExecContext(ctx, query,
		w.ID, w.RegionID, w.Type, w.Duration, string(w.Options),
		w.CreatedAt.UTC().Format(time.RFC3339Nano),
		w.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save widget: %w", err)
	}
	return nil
}

func (d *Database) GetWidget(ctx context.Context, id string) (*models.Widget, error) {
	query := `
		SELECT id, region_id, type, duration, options, created_at, updated_at
		FROM widgets
		WHERE id = ?
	`
	w, err := scanWidget(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("widget %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get widget: %w", err)
	}
	return w, nil
}

// ListWidgets returns the widgets of a region in creation order
func (d *Database) ListWidgets(ctx context.Context, regionID string) ([]*models.Widget, error) {
	query := `
		SELECT id, region_id, type, duration, options, created_at, updated_at
		FROM widgets
		WHERE region_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query widgets: %w", err)
	}
	defer rows.Close()

	var widgets []*models.Widget
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan widget: %w", err)
		}
		widgets = append(widgets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return widgets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWidget(row rowScanner) (*models.Widget, error) {
	var (
		w                    models.Widget
		options              string
		createdAt, updatedAt string
	)
	if err := row.Scan(&w.ID, &w.RegionID, &w.Type, &w.Duration, &options, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	w.Options = []byte(options)

	var err error
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if w.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &w, nil
}

// RecordSystemFile registers an installed module asset
func (d *Database) RecordSystemFile(ctx context.Context, name, storedAs string) error {
	query := `
		INSERT INTO system_files (name, stored_as, installed_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET stored_as = excluded.stored_as, installed_at = excluded.installed_at
	`
	if _, err := d.db.ExecContext(ctx, query, name, storedAs, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to record system file: %w", err)
	}
	return nil
}

func (d *Database) ListSystemFiles(ctx context.Context) ([]SystemFile, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name, stored_as, installed_at FROM system_files ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query system files: %w", err)
	}
	defer rows.Close()

	var files []SystemFile
	for rows.Next() {
		var (
			f           SystemFile
			installedAt string
		)
		if err := rows.Scan(&f.Name, &f.StoredAs, &installedAt); err != nil {
			return nil, fmt.Errorf("failed to scan system file: %w", err)
		}
		if f.InstalledAt, err = time.Parse(time.RFC3339Nano, installedAt); err != nil {
			return nil, fmt.Errorf("invalid installed_at %q: %w", installedAt, err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return files, nil
}

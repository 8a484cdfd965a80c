// Package persistence provides SQLite-based storage for named parameter
// presets and the export history.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/spirob/internal/spiral"
)

// ErrNotFound is returned when a named preset does not exist.
var ErrNotFound = errors.New("not found")

// Preset is a named, saved parameter set.
type Preset struct {
	Name      string        `json:"name" db:"name"`
	Params    spiral.Params `json:"params" db:"-"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// ExportRecord is one completed export run.
type ExportRecord struct {
	ID        string    `json:"id" db:"id"`
	Kind      string    `json:"kind" db:"kind"`
	Path      string    `json:"path" db:"path"`
	Bytes     int64     `json:"bytes" db:"bytes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DB wraps a SQLite connection for preset and export storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS presets (
		name TEXT PRIMARY KEY,
		params_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SavePreset stores a named parameter set, replacing any existing preset
// with the same name.
func (db *DB) SavePreset(name string, p spiral.Params) error {
	paramsJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preset %q: %w", name, err)
	}
	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO presets (name, params_json, created_at) VALUES (?, ?, ?)",
		name, string(paramsJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save preset %q: %w", name, err)
	}
	return nil
}

// LoadPreset retrieves a preset by name.
func (db *DB) LoadPreset(name string) (Preset, error) {
	var row struct {
		Name       string    `db:"name"`
		ParamsJSON string    `db:"params_json"`
		CreatedAt  time.Time `db:"created_at"`
	}
	err := db.conn.Get(&row,
		"SELECT name, params_json, created_at FROM presets WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("preset %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("load preset %q: %w", name, err)
	}

	pre := Preset{Name: row.Name, CreatedAt: row.CreatedAt}
	if err := json.Unmarshal([]byte(row.ParamsJSON), &pre.Params); err != nil {
		return Preset{}, fmt.Errorf("decode preset %q: %w", name, err)
	}
	return pre, nil
}

// ListPresets returns all presets, newest first.
func (db *DB) ListPresets() ([]Preset, error) {
	var rows []struct {
		Name       string    `db:"name"`
		ParamsJSON string    `db:"params_json"`
		CreatedAt  time.Time `db:"created_at"`
	}
	err := db.conn.Select(&rows,
		"SELECT name, params_json, created_at FROM presets ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}

	out := make([]Preset, 0, len(rows))
	for _, row := range rows {
		pre := Preset{Name: row.Name, CreatedAt: row.CreatedAt}
		if err := json.Unmarshal([]byte(row.ParamsJSON), &pre.Params); err != nil {
			return nil, fmt.Errorf("decode preset %q: %w", row.Name, err)
		}
		out = append(out, pre)
	}
	return out, nil
}

// DeletePreset removes a preset by name. Deleting a missing preset returns
// ErrNotFound.
func (db *DB) DeletePreset(name string) error {
	res, err := db.conn.Exec("DELETE FROM presets WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("preset %q: %w", name, ErrNotFound)
	}
	return nil
}

// RecordExport appends one export run to the history.
func (db *DB) RecordExport(rec ExportRecord) error {
	_, err := db.conn.Exec(
		"INSERT INTO exports (id, kind, path, bytes, created_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Kind, rec.Path, rec.Bytes, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record export %s: %w", rec.ID, err)
	}
	return nil
}

// ListExports returns the most recent export records.
func (db *DB) ListExports(limit int) ([]ExportRecord, error) {
	var recs []ExportRecord
	err := db.conn.Select(&recs,
		"SELECT id, kind, path, bytes, created_at FROM exports ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return recs, nil
}

// CountExports returns the total number of recorded export files.
func (db *DB) CountExports() (int, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM exports"); err != nil {
		return 0, fmt.Errorf("count exports: %w", err)
	}
	return n, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

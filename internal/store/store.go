// Package store provides a sqlite-backed mirror of retained state: the
// last-known value of every property and the device's registration record,
// so a restart can repopulate its in-memory affordance store without
// waiting on the broker's own retained messages to replay. Grounded on the
// sqlite infra package's Open/migrate/WAL shape, adapted from a model
// registry to a property/registration mirror.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, enabling WAL mode,
// foreign keys, and a 5-second busy timeout.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS properties (
			name       TEXT PRIMARY KEY,
			value_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS registration (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Properties ─────────────────────────────────────────────────────────────

// PutProperty mirrors the current value of a property, overwriting any
// previous record.
func (d *DB) PutProperty(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal property %q: %w", name, err)
	}
	_, err = d.db.Exec(
		`INSERT INTO properties (name, value_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value_json=excluded.value_json, updated_at=excluded.updated_at`,
		name, string(data), time.Now().Unix(),
	)
	return err
}

// GetProperty retrieves a mirrored property value, decoding it into v.
// Returns false if the property has never been mirrored.
func (d *DB) GetProperty(name string, v any) (bool, error) {
	var data string
	err := d.db.QueryRow(`SELECT value_json FROM properties WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("store: unmarshal property %q: %w", name, err)
	}
	return true, nil
}

// AllProperties returns every mirrored property name and its raw JSON
// value, for bulk repopulation of the affordance store at boot.
func (d *DB) AllProperties() (map[string]json.RawMessage, error) {
	rows, err := d.db.Query(`SELECT name, value_json FROM properties`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, err
		}
		out[name] = json.RawMessage(data)
	}
	return out, rows.Err()
}

// ─── Registration ───────────────────────────────────────────────────────────

// SetRegistration stores a registration field (e.g. the device's generated
// UUID, persisted across restarts so it survives even though it's only
// ever assigned once).
func (d *DB) SetRegistration(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO registration (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetRegistration retrieves a registration field, returning "" if unset.
func (d *DB) GetRegistration(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM registration WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

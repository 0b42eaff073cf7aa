// Package store provides the durable Status Store backend.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/voltgrid/csms/core/ocpp"
)

// SQLiteStore persists station status to a SQLite database. database/sql
// serializes writers, so concurrent Set calls uphold the linearizable-write
// contract; Snapshot reads a consistent view.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS station_status (
        station_id TEXT PRIMARY KEY,
        status TEXT NOT NULL,
        updated_at INTEGER NOT NULL DEFAULT (unixepoch())
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Set upserts the status row for a station.
func (s *SQLiteStore) Set(stationID string, st ocpp.ChargePointStatus) error {
	_, err := s.db.Exec(
		`INSERT INTO station_status (station_id, status, updated_at) VALUES (?, ?, unixepoch())
         ON CONFLICT(station_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		stationID, string(st),
	)
	return err
}

// Get returns the stored status for a station.
func (s *SQLiteStore) Get(stationID string) (ocpp.ChargePointStatus, bool, error) {
	var st string
	err := s.db.QueryRow(`SELECT status FROM station_status WHERE station_id = ?`, stationID).Scan(&st)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ocpp.ChargePointStatus(st), true, nil
}

// Snapshot reads the whole mapping.
func (s *SQLiteStore) Snapshot() (map[string]ocpp.ChargePointStatus, error) {
	rows, err := s.db.Query(`SELECT station_id, status FROM station_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]ocpp.ChargePointStatus)
	for rows.Next() {
		var id, st string
		if err := rows.Scan(&id, &st); err != nil {
			return nil, err
		}
		out[id] = ocpp.ChargePointStatus(st)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

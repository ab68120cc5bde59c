// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package persistence implements the broker's persisted state layout
// (spec.md §6): a relational record of each aggregator's terminals,
// services and their endpoints, backing the restart recovery contract of
// spec.md §4.4. It is a reference adapter only — spec.md §1 leaves
// persistence out of the core's scope beyond the recovery contract
// itself, so this package exists to exercise that contract end to end.
package persistence

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/dpbroker/dpb/internal/dpberrors"
)

// Store is a sqlite-backed implementation of spec.md §6's three-table
// layout. The slice parameter of every method matches the spec's own
// column name for "the aggregator this row belongs to".
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite database at path and
// ensures its schema exists. WAL mode and a busy timeout match the
// teacher's own sqlite-backed stores (internal/services/*/querylog).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: open %q", path)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS terminals (
	slice          TEXT NOT NULL,
	id             TEXT NOT NULL,
	name           TEXT NOT NULL,
	backend_config TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (slice, id),
	UNIQUE (slice, name)
);

CREATE TABLE IF NOT EXISTS services (
	slice      TEXT NOT NULL,
	id         TEXT NOT NULL,
	intent_bool INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (slice, id)
);

CREATE TABLE IF NOT EXISTS endpoints (
	service_id  TEXT NOT NULL,
	terminal_id TEXT NOT NULL,
	label       INTEGER NOT NULL,
	metering    REAL NOT NULL DEFAULT 0,
	shaping     REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (service_id, terminal_id, label)
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: init schema")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveTerminal upserts one terminal row. backendConfig is an opaque
// string the caller may use to record fabric-specific terminal
// configuration (e.g. a switch/port pair); the broker's own in-memory
// fabrics leave it empty.
func (s *Store) SaveTerminal(slice, id, name, backendConfig string) error {
	_, err := s.db.Exec(
		`INSERT INTO terminals(slice, id, name, backend_config) VALUES (?, ?, ?, ?)
		 ON CONFLICT(slice, id) DO UPDATE SET name = excluded.name, backend_config = excluded.backend_config`,
		slice, id, name, backendConfig)
	if err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: save terminal %s/%s", slice, id)
	}
	return nil
}

// TerminalName returns the name of terminal id on slice, previously
// recorded via SaveTerminal.
func (s *Store) TerminalName(slice, id string) (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM terminals WHERE slice = ? AND id = ?`, slice, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "persistence: no terminal %s/%s on record", slice, id)
	}
	if err != nil {
		return "", dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: load terminal %s/%s", slice, id)
	}
	return name, nil
}

// ServiceRecord is one persisted service: its handle, activation intent,
// and the endpoints composing its last-defined segment.
type ServiceRecord struct {
	ID        string
	Intent    bool
	Endpoints []EndpointRecord
}

// EndpointRecord is one persisted circuit within a service's segment.
// Metering and Shaping hold the circuit's ingress and egress rates
// respectively (spec.md §6 leaves the two columns' exact meaning
// illustrative; this is the reference adapter's resolution of that).
type EndpointRecord struct {
	TerminalID string
	Label      uint32
	Metering   float64
	Shaping    float64
}

// SaveService upserts a service's intent flag and replaces its endpoint
// set atomically, so a partially-written update is never observed.
func (s *Store) SaveService(slice, id string, intent bool, endpoints []EndpointRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: begin save for %s/%s", slice, id)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO services(slice, id, intent_bool) VALUES (?, ?, ?)
		 ON CONFLICT(slice, id) DO UPDATE SET intent_bool = excluded.intent_bool`,
		slice, id, boolToInt(intent)); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: save service %s/%s", slice, id)
	}

	if _, err := tx.Exec(`DELETE FROM endpoints WHERE service_id = ?`, id); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: clear endpoints for %s", id)
	}
	for _, e := range endpoints {
		if _, err := tx.Exec(
			`INSERT INTO endpoints(service_id, terminal_id, label, metering, shaping) VALUES (?, ?, ?, ?, ?)`,
			id, e.TerminalID, e.Label, e.Metering, e.Shaping); err != nil {
			return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: save endpoint for %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: commit save for %s/%s", slice, id)
	}
	return nil
}

// DeleteService removes a service and its endpoints in one transaction.
func (s *Store) DeleteService(slice, id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: begin delete for %s/%s", slice, id)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM endpoints WHERE service_id = ?`, id); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: delete endpoints for %s", id)
	}
	if _, err := tx.Exec(`DELETE FROM services WHERE slice = ? AND id = ?`, slice, id); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: delete service %s/%s", slice, id)
	}
	if err := tx.Commit(); err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: commit delete for %s/%s", slice, id)
	}
	return nil
}

// LoadSlice returns every service recorded for slice, each with its full
// endpoint set, for the recovery driver to replay.
func (s *Store) LoadSlice(slice string) ([]ServiceRecord, error) {
	rows, err := s.db.Query(`SELECT id, intent_bool FROM services WHERE slice = ?`, slice)
	if err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: load services for %s", slice)
	}
	defer rows.Close()

	var records []ServiceRecord
	for rows.Next() {
		var id string
		var intent int
		if err := rows.Scan(&id, &intent); err != nil {
			return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: scan service row for %s", slice)
		}
		records = append(records, ServiceRecord{ID: id, Intent: intent != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: iterate services for %s", slice)
	}

	for i := range records {
		eps, err := s.loadEndpoints(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Endpoints = eps
	}
	return records, nil
}

func (s *Store) loadEndpoints(serviceID string) ([]EndpointRecord, error) {
	rows, err := s.db.Query(`SELECT terminal_id, label, metering, shaping FROM endpoints WHERE service_id = ?`, serviceID)
	if err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: load endpoints for %s", serviceID)
	}
	defer rows.Close()

	var out []EndpointRecord
	for rows.Next() {
		var e EndpointRecord
		if err := rows.Scan(&e.TerminalID, &e.Label, &e.Metering, &e.Shaping); err != nil {
			return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: scan endpoint row for %s", serviceID)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeStorageFailure, "persistence: iterate endpoints for %s", serviceID)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

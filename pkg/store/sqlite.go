package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS thresholds (
		signal TEXT PRIMARY KEY,
		value  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS satellites (
		name  TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS crossings (
		id        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		signal    TEXT NOT NULL,
		value     INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		ts        INTEGER NOT NULL
	)`,
}

// SQLite keeps coordinator state in a single sqlite database file
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer keeps sqlite away from SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate sqlite schema")
		}
	}
	return nil
}

func (s *SQLite) LoadThresholds(ctx context.Context) (map[entities.Signal]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT signal, value FROM thresholds`)
	if err != nil {
		return nil, errors.Wrap(err, "query thresholds")
	}
	defer rows.Close()

	thresholds := make(map[entities.Signal]int64)
	for rows.Next() {
		var signal string
		var value int64
		if err := rows.Scan(&signal, &value); err != nil {
			return nil, errors.Wrap(err, "scan threshold")
		}
		thresholds[entities.Signal(signal)] = value
	}
	return thresholds, rows.Err()
}

func (s *SQLite) SaveThreshold(ctx context.Context, signal entities.Signal, value int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thresholds (signal, value) VALUES (?, ?)
		 ON CONFLICT(signal) DO UPDATE SET value = excluded.value`,
		string(signal), value)
	return errors.Wrapf(err, "save %s threshold", signal)
}

func (s *SQLite) LoadSatellite(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM satellites WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "load %s", name)
	}
	return value, nil
}

func (s *SQLite) SaveSatellite(ctx context.Context, name string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO satellites (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	return errors.Wrapf(err, "save %s", name)
}

// Notify journals a crossing, which makes the store usable as an events.Notifier
func (s *SQLite) Notify(ctx context.Context, event entities.ThresholdCrossed) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crossings (id, name, signal, value, threshold, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Name, string(event.Signal), event.Value, event.Threshold, event.Timestamp.UnixNano())
	return errors.Wrap(err, "journal crossing")
}

// Crossings returns the most recent journaled crossings of signal, newest first
func (s *SQLite) Crossings(ctx context.Context, signal entities.Signal, limit int) ([]entities.ThresholdCrossed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, signal, value, threshold, ts FROM crossings
		 WHERE signal = ? ORDER BY ts DESC LIMIT ?`,
		string(signal), limit)
	if err != nil {
		return nil, errors.Wrap(err, "query crossings")
	}
	defer rows.Close()

	var out []entities.ThresholdCrossed
	for rows.Next() {
		var event entities.ThresholdCrossed
		var sig string
		var ts int64
		if err := rows.Scan(&event.ID, &event.Name, &sig, &event.Value, &event.Threshold, &ts); err != nil {
			return nil, errors.Wrap(err, "scan crossing")
		}
		event.Signal = entities.Signal(sig)
		event.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

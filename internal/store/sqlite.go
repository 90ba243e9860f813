package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-history/internal/weather"
)

// Timestamps are stored as fixed-width UTC text so that ORDER BY on the
// column is chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history_records (
	id              TEXT PRIMARY KEY,
	input_location  TEXT NOT NULL,
	location_name   TEXT NOT NULL,
	location_lat    REAL NOT NULL,
	location_lon    REAL NOT NULL,
	location_country TEXT NOT NULL DEFAULT '',
	location_state  TEXT NOT NULL DEFAULT '',
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	weather_series  TEXT NOT NULL,
	user_notes      TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_records_created_at ON history_records(created_at);
`

const sqliteColumns = `id, input_location, location_name, location_lat, location_lon,
	location_country, location_state, start_date, end_date, weather_series,
	user_notes, created_at, updated_at`

// SQLiteStore is a durable weather.Repository backed by a SQLite file.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return weather.NewPersistenceError("ping", err)
	}
	return nil
}

// Create assigns a UUID and inserts rec.
func (s *SQLiteStore) Create(ctx context.Context, rec weather.HistoryRecord) (weather.HistoryRecord, error) {
	rec = normalize(rec)
	if err := weather.ValidateRecord(rec); err != nil {
		return weather.HistoryRecord{}, err
	}
	rec.ID = uuid.NewString()

	series, err := json.Marshal(rec.WeatherSeries)
	if err != nil {
		return weather.HistoryRecord{}, weather.NewPersistenceError("create", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history_records (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.InputLocation,
		rec.ResolvedLocation.Name,
		rec.ResolvedLocation.Lat,
		rec.ResolvedLocation.Lon,
		rec.ResolvedLocation.Country,
		rec.ResolvedLocation.State,
		rec.DateRange.Start.Format(time.RFC3339Nano),
		rec.DateRange.End.Format(time.RFC3339Nano),
		string(series),
		rec.UserNotes,
		rec.CreatedAt.Format(sqliteTimeLayout),
		rec.UpdatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return weather.HistoryRecord{}, weather.NewPersistenceError("create", err)
	}
	return rec, nil
}

// List returns all records ordered by created_at descending.
func (s *SQLiteStore) List(ctx context.Context) ([]weather.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM history_records ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, weather.NewPersistenceError("list", err)
	}
	defer rows.Close()

	result := []weather.HistoryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, weather.NewPersistenceError("list", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, weather.NewPersistenceError("list", err)
	}
	return result, nil
}

// Get returns the record with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (weather.HistoryRecord, error) {
	if err := checkUUID(id); err != nil {
		return weather.HistoryRecord{}, err
	}
	return s.get(ctx, s.db, "get", id)
}

// Update runs the read-modify-write in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch weather.RecordPatch, now time.Time) (weather.HistoryRecord, bool, error) {
	if err := checkUUID(id); err != nil {
		return weather.HistoryRecord{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return weather.HistoryRecord{}, false, weather.NewPersistenceError("update", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.get(ctx, tx, "update", id)
	if err != nil {
		return weather.HistoryRecord{}, false, err
	}

	updated, changed := applyPatch(current, patch, now)
	if !changed {
		return current, false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE history_records SET user_notes = ?, updated_at = ? WHERE id = ?`,
		updated.UserNotes,
		updated.UpdatedAt.Format(sqliteTimeLayout),
		id,
	)
	if err != nil {
		return weather.HistoryRecord{}, false, weather.NewPersistenceError("update", err)
	}
	if err := tx.Commit(); err != nil {
		return weather.HistoryRecord{}, false, weather.NewPersistenceError("update", err)
	}
	return updated, true, nil
}

// Delete removes the record with the given id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := checkUUID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM history_records WHERE id = ?`, id)
	if err != nil {
		return weather.NewPersistenceError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return weather.NewPersistenceError("delete", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryer, op, id string) (weather.HistoryRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM history_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.HistoryRecord{}, notFound(id)
	}
	if err != nil {
		return weather.HistoryRecord{}, weather.NewPersistenceError(op, err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (weather.HistoryRecord, error) {
	var (
		rec                  weather.HistoryRecord
		start, end, series   string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&rec.ID,
		&rec.InputLocation,
		&rec.ResolvedLocation.Name,
		&rec.ResolvedLocation.Lat,
		&rec.ResolvedLocation.Lon,
		&rec.ResolvedLocation.Country,
		&rec.ResolvedLocation.State,
		&start,
		&end,
		&series,
		&rec.UserNotes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return weather.HistoryRecord{}, err
	}

	if rec.DateRange.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("parse start_date: %w", err)
	}
	if rec.DateRange.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("parse end_date: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("parse updated_at: %w", err)
	}
	rec.WeatherSeries = []weather.Observation{}
	if err := json.Unmarshal([]byte(series), &rec.WeatherSeries); err != nil {
		return weather.HistoryRecord{}, fmt.Errorf("decode weather_series: %w", err)
	}
	return rec, nil
}

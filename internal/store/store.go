// Package store holds the weather.Repository implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-history/internal/weather"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Driver          string
	SQLitePath      string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// Store is a Repository that owns a closable resource.
type Store interface {
	weather.Repository
	Close() error
}

// Open creates the configured store. The caller owns the returned store and
// must Close it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case DriverMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func notFound(id string) error {
	return weather.NewNotFoundError("record", id)
}

func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", weather.ErrInvalidID, id)
	}
	return nil
}

// normalize brings a record to stored precision before validation.
func normalize(rec weather.HistoryRecord) weather.HistoryRecord {
	rec.CreatedAt = weather.Timestamp(rec.CreatedAt)
	rec.UpdatedAt = weather.Timestamp(rec.UpdatedAt)
	rec.DateRange.Start = rec.DateRange.Start.UTC()
	rec.DateRange.End = rec.DateRange.End.UTC()
	if rec.WeatherSeries == nil {
		rec.WeatherSeries = []weather.Observation{}
	}
	return rec
}

// applyPatch returns the patched record and whether anything changed.
// UpdatedAt only moves when a field actually differs.
func applyPatch(rec weather.HistoryRecord, patch weather.RecordPatch, now time.Time) (weather.HistoryRecord, bool) {
	changed := false
	if patch.UserNotes != nil && *patch.UserNotes != rec.UserNotes {
		rec.UserNotes = *patch.UserNotes
		changed = true
	}
	if changed {
		rec.UpdatedAt = weather.NextUpdate(rec.UpdatedAt, now)
	}
	return rec, changed
}

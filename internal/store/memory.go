package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-history/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Repository.
type MemoryStore struct {
	mu sync.RWMutex

	// key: record id
	data map[string]*entry
	seq  uint64
}

// entry keeps the insertion sequence to break createdAt ties when listing.
type entry struct {
	record weather.HistoryRecord
	seq    uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
	}
}

// Create assigns a UUID and stores a copy of rec.
func (s *MemoryStore) Create(_ context.Context, rec weather.HistoryRecord) (weather.HistoryRecord, error) {
	rec = normalize(rec)
	if err := weather.ValidateRecord(rec); err != nil {
		return weather.HistoryRecord{}, err
	}
	rec.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.data[rec.ID] = &entry{record: clone(rec), seq: s.seq}
	return clone(rec), nil
}

// List returns all records ordered by CreatedAt descending.
func (s *MemoryStore) List(_ context.Context) ([]weather.HistoryRecord, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.data))
	for _, e := range s.data {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.After(b.record.CreatedAt)
		}
		return a.seq > b.seq
	})

	result := make([]weather.HistoryRecord, 0, len(entries))
	for _, e := range entries {
		result = append(result, clone(e.record))
	}
	return result, nil
}

// Get returns the record with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (weather.HistoryRecord, error) {
	if err := checkUUID(id); err != nil {
		return weather.HistoryRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok {
		return weather.HistoryRecord{}, notFound(id)
	}
	return clone(e.record), nil
}

// Update applies patch under the write lock, so concurrent updates of the
// same record are serialized.
func (s *MemoryStore) Update(_ context.Context, id string, patch weather.RecordPatch, now time.Time) (weather.HistoryRecord, bool, error) {
	if err := checkUUID(id); err != nil {
		return weather.HistoryRecord{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return weather.HistoryRecord{}, false, notFound(id)
	}

	updated, changed := applyPatch(e.record, patch, now)
	if changed {
		e.record = updated
	}
	return clone(e.record), changed, nil
}

// Delete removes the record with the given id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if err := checkUUID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return notFound(id)
	}
	delete(s.data, id)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func clone(rec weather.HistoryRecord) weather.HistoryRecord {
	series := make([]weather.Observation, len(rec.WeatherSeries))
	copy(series, rec.WeatherSeries)
	rec.WeatherSeries = series
	return rec
}

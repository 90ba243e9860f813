package weather

import (
	"context"
	"time"
)

// GeocodeProvider abstracts a free-text geocoding source (e.g. OpenWeatherMap).
// It returns matches ordered best first; an empty slice means no match.
type GeocodeProvider interface {
	Name() string
	Geocode(ctx context.Context, query string) ([]Location, error)
}

// CurrentProvider abstracts a current-conditions source, metric units.
type CurrentProvider interface {
	Name() string
	Current(ctx context.Context, lat, lon float64) (Observation, error)
}

// HistoricalProvider abstracts a daily history source. Implementations are
// interchangeable strategies behind Fetcher.FetchHistorical.
type HistoricalProvider interface {
	Name() string
	Historical(ctx context.Context, lat, lon float64, start, end Date) ([]Observation, error)
}

// Video is a single video search hit.
type Video struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel,omitempty"`
	URL     string `json:"url"`
}

// VideoProvider abstracts a video search source. It reports
// ErrFeatureUnavailable when it has no credentials.
type VideoProvider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

// MapLink types.
const (
	MapLinkEmbed       = "embed_url"
	MapLinkCoordinates = "coordinates"
)

// MapLink is either an embeddable map url or raw coordinates.
type MapLink struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	SearchURL string `json:"searchUrl"`
}

// MapLinker builds map links for a place name. EmbedURL reports false when
// no map credential is configured.
type MapLinker interface {
	EmbedURL(name string) (string, bool)
	SearchURL(name string) string
}

// Repository is the contract every record store must satisfy.
type Repository interface {
	// Create assigns an id, persists rec and returns the stored record.
	Create(ctx context.Context, rec HistoryRecord) (HistoryRecord, error)
	// List returns all records, newest CreatedAt first.
	List(ctx context.Context) ([]HistoryRecord, error)
	// Get returns ErrInvalidID for malformed ids and ErrNotFound for unknown ones.
	Get(ctx context.Context, id string) (HistoryRecord, error)
	// Update applies patch at time now. changed is false when the patch
	// matched the stored values; the record is then left untouched.
	Update(ctx context.Context, id string, patch RecordPatch, now time.Time) (rec HistoryRecord, changed bool, err error)
	// Delete removes the record; a missing record is ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}

// Recorder receives pipeline events for metrics. A nil Recorder is allowed.
type Recorder interface {
	HistoricalFallback(provider string)
	RecordOperation(op, outcome string)
}

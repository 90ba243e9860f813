package weather_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/weather-history/internal/store"
	"github.com/i474232898/weather-history/internal/weather"
)

var paris = weather.Location{Name: "Paris", Lat: 48.8589, Lon: 2.32, Country: "FR", State: "Ile-de-France"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGeocoder struct {
	calls   atomic.Int32
	matches []weather.Location
	err     error
}

func (g *fakeGeocoder) Name() string { return "fake-geo" }

func (g *fakeGeocoder) Geocode(context.Context, string) ([]weather.Location, error) {
	g.calls.Add(1)
	return g.matches, g.err
}

type fakeCurrent struct {
	calls atomic.Int32
	obs   weather.Observation
	err   error
}

func (f *fakeCurrent) Name() string { return "fake-current" }

func (f *fakeCurrent) Current(context.Context, float64, float64) (weather.Observation, error) {
	f.calls.Add(1)
	return f.obs, f.err
}

type fakeHistorical struct {
	calls      atomic.Int32
	series     []weather.Observation
	err        error
	start, end weather.Date
}

func (f *fakeHistorical) Name() string { return "fake-history" }

func (f *fakeHistorical) Historical(_ context.Context, _, _ float64, start, end weather.Date) ([]weather.Observation, error) {
	f.calls.Add(1)
	f.start, f.end = start, end
	return f.series, f.err
}

type fakeVideos struct {
	limit int
	err   error
}

func (f *fakeVideos) Name() string { return "fake-videos" }

func (f *fakeVideos) Search(_ context.Context, query string, limit int) ([]weather.Video, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	videos := make([]weather.Video, 0, 30)
	for i := 0; i < 30; i++ {
		videos = append(videos, weather.Video{ID: query, Title: query})
	}
	return videos, nil
}

type fakeMaps struct{ key string }

func (m fakeMaps) EmbedURL(name string) (string, bool) {
	if m.key == "" {
		return "", false
	}
	return "embed:" + name, true
}

func (m fakeMaps) SearchURL(name string) string { return "search:" + name }

type fakeRecorder struct {
	mu         sync.Mutex
	fallbacks  []string
	operations []string
}

func (r *fakeRecorder) HistoricalFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, provider)
}

func (r *fakeRecorder) RecordOperation(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, op+":"+outcome)
}

// countingRepo counts calls into a memory store and can be made to fail.
type countingRepo struct {
	*store.MemoryStore
	creates atomic.Int32
	fail    bool
}

func newCountingRepo() *countingRepo {
	return &countingRepo{MemoryStore: store.NewMemoryStore()}
}

func (r *countingRepo) Create(ctx context.Context, rec weather.HistoryRecord) (weather.HistoryRecord, error) {
	r.creates.Add(1)
	if r.fail {
		return weather.HistoryRecord{}, weather.NewPersistenceError("create", errors.New("disk full"))
	}
	return r.MemoryStore.Create(ctx, rec)
}

// stepClock returns base, base+1s, base+2s, ...
func stepClock(base time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)-1) * time.Second)
	}
}

type fixture struct {
	geocoder   *fakeGeocoder
	current    *fakeCurrent
	historical weather.HistoricalProvider
	videos     weather.VideoProvider
	maps       weather.MapLinker
	repo       *countingRepo
	recorder   *fakeRecorder
}

func newFixture() *fixture {
	return &fixture{
		geocoder: &fakeGeocoder{matches: []weather.Location{paris}},
		current:  &fakeCurrent{},
		repo:     newCountingRepo(),
		recorder: &fakeRecorder{},
	}
}

func (f *fixture) service() *weather.Service {
	return weather.NewService(weather.ServiceConfig{
		Geocoder:   f.geocoder,
		Current:    f.current,
		Historical: f.historical,
		Videos:     f.videos,
		Maps:       f.maps,
		Repository: f.repo,
		Recorder:   f.recorder,
		Clock:      stepClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		Logger:     quietLogger(),
	})
}

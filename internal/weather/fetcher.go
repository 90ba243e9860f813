package weather

import (
	"context"
	"fmt"
	"log/slog"
)

// Fetcher retrieves current and historical observations for coordinates.
type Fetcher struct {
	current    CurrentProvider
	historical HistoricalProvider
	fallback   *SyntheticHistory
	recorder   Recorder
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. A nil historical provider means every
// history request is served by the synthetic strategy.
func NewFetcher(current CurrentProvider, historical HistoricalProvider, recorder Recorder, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		current:    current,
		historical: historical,
		fallback:   NewSyntheticHistory(),
		recorder:   recorder,
		logger:     logger,
	}
}

// FetchCurrent makes a single upstream call. Any failure is an UpstreamError.
func (f *Fetcher) FetchCurrent(ctx context.Context, lat, lon float64) (Observation, error) {
	obs, err := f.current.Current(ctx, lat, lon)
	if err != nil {
		target := fmt.Sprintf("%f,%f", lat, lon)
		f.logger.ErrorContext(ctx, "current weather fetch failed",
			slog.String("provider", f.current.Name()),
			slog.String("target", target),
			slog.Any("error", err),
		)
		return Observation{}, NewUpstreamError(f.current.Name(), target, err)
	}
	return obs, nil
}

// FetchHistorical returns the daily series for [start, end]. It never fails:
// when no live provider is configured, or the live provider errors, the
// synthetic series is returned and logged as such.
func (f *Fetcher) FetchHistorical(ctx context.Context, lat, lon float64, start, end Date) []Observation {
	if f.historical == nil {
		return f.synthetic(ctx, lat, lon, start, end, "no live historical provider")
	}
	if _, ok := f.historical.(*SyntheticHistory); ok {
		return f.synthetic(ctx, lat, lon, start, end, "synthetic strategy configured")
	}

	series, err := f.historical.Historical(ctx, lat, lon, start, end)
	if err != nil {
		f.logger.ErrorContext(ctx, "historical weather fetch failed",
			slog.String("provider", f.historical.Name()),
			slog.String("target", fmt.Sprintf("%f,%f", lat, lon)),
			slog.String("start", start.String()),
			slog.String("end", end.String()),
			slog.Any("error", err),
		)
		return f.synthetic(ctx, lat, lon, start, end, "live provider failed")
	}
	return series
}

func (f *Fetcher) synthetic(ctx context.Context, lat, lon float64, start, end Date, reason string) []Observation {
	f.logger.WarnContext(ctx, "serving synthetic historical weather",
		slog.Bool("synthetic", true),
		slog.String("reason", reason),
		slog.Float64("lat", lat),
		slog.Float64("lon", lon),
		slog.String("start", start.String()),
		slog.String("end", end.String()),
	)
	if f.recorder != nil {
		provider := "none"
		if f.historical != nil {
			provider = f.historical.Name()
		}
		f.recorder.HistoricalFallback(provider)
	}
	series, _ := f.fallback.Historical(ctx, lat, lon, start, end)
	return series
}

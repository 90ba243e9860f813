package weather

import (
	"context"
	"log/slog"
	"strings"
)

// Geocoder resolves free-text location strings to a single best Location.
type Geocoder struct {
	provider GeocodeProvider
	logger   *slog.Logger
}

// NewGeocoder creates a Geocoder backed by provider.
func NewGeocoder(provider GeocodeProvider, logger *slog.Logger) *Geocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Geocoder{provider: provider, logger: logger}
}

// Resolve returns the provider's first match for text.
//
// Blank input fails with a ValidationError before any network call. Provider
// failures are logged and reported as NotFound; there is no retry here.
func (g *Geocoder) Resolve(ctx context.Context, text string) (Location, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return Location{}, NewValidationError("location", MsgMissingField)
	}

	matches, err := g.provider.Geocode(ctx, query)
	if err != nil {
		g.logger.ErrorContext(ctx, "geocoding failed",
			slog.String("provider", g.provider.Name()),
			slog.String("input", query),
			slog.Any("error", err),
		)
		return Location{}, NewNotFoundError("location", query)
	}
	if len(matches) == 0 {
		g.logger.InfoContext(ctx, "geocoding returned no matches",
			slog.String("provider", g.provider.Name()),
			slog.String("input", query),
		)
		return Location{}, NewNotFoundError("location", query)
	}

	best := matches[0]
	if best.Name == "" {
		best.Name = query
	}
	return best, nil
}

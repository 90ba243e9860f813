package weather

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// AssembleRequest is the raw caller input for a new history record.
type AssembleRequest struct {
	Location  string `json:"location" validate:"required"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	UserNotes string `json:"userNotes"`
}

// Assembler turns caller input into a HistoryRecord ready to be stored.
type Assembler struct {
	geocoder *Geocoder
	fetcher  *Fetcher
	now      func() time.Time
	logger   *slog.Logger
}

// NewAssembler creates an Assembler. A nil clock defaults to time.Now.
func NewAssembler(geocoder *Geocoder, fetcher *Fetcher, clock func() time.Time, logger *slog.Logger) *Assembler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{geocoder: geocoder, fetcher: fetcher, now: clock, logger: logger}
}

// Assemble validates req, resolves its location and fetches the daily series.
//
// Checks run in order and the first failure wins: required fields, date
// format, date order, geocoding. Nothing touches the network until the three
// local checks have passed. An empty series is kept, not rejected.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) (HistoryRecord, error) {
	req.Location = strings.TrimSpace(req.Location)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)

	if err := validate.Struct(req); err != nil {
		verr := toValidationError(err).(*ValidationError)
		return HistoryRecord{}, NewValidationError(verr.Field, MsgMissingField)
	}

	start, err := ParseTimestamp(req.StartDate)
	if err != nil {
		return HistoryRecord{}, NewValidationError("startDate", MsgBadDateFormat)
	}
	end, err := ParseTimestamp(req.EndDate)
	if err != nil {
		return HistoryRecord{}, NewValidationError("endDate", MsgBadDateFormat)
	}
	if start.After(end) {
		return HistoryRecord{}, NewValidationError("startDate", MsgStartAfterEnd)
	}

	loc, err := a.geocoder.Resolve(ctx, req.Location)
	if err != nil {
		return HistoryRecord{}, err
	}

	// Both days are taken in UTC so that start <= end also holds for the days.
	series := a.fetcher.FetchHistorical(ctx, loc.Lat, loc.Lon, DateOf(start.UTC()), DateOf(end.UTC()))
	if len(series) == 0 {
		a.logger.WarnContext(ctx, "no historical weather for range",
			slog.String("input", req.Location),
			slog.String("start", req.StartDate),
			slog.String("end", req.EndDate),
		)
		series = []Observation{}
	}

	now := Timestamp(a.now())
	return HistoryRecord{
		InputLocation:    req.Location,
		ResolvedLocation: loc,
		DateRange:        DateRange{Start: start.UTC(), End: end.UTC()},
		WeatherSeries:    series,
		UserNotes:        req.UserNotes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ParseTimestamp accepts a date (YYYY-MM-DD, read as midnight UTC) or an
// RFC 3339 date-time that carries an explicit offset or Z.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

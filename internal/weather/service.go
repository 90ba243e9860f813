package weather

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// DefaultVideoLimit and MaxVideoLimit bound video search results.
const (
	DefaultVideoLimit = 5
	MaxVideoLimit     = 25
)

// ServiceConfig bundles the collaborators of a Service. Geocoder, Current and
// Repository are required; the rest are optional.
type ServiceConfig struct {
	Geocoder   GeocodeProvider
	Current    CurrentProvider
	Historical HistoricalProvider
	Videos     VideoProvider
	Maps       MapLinker
	Repository Repository
	Recorder   Recorder
	Clock      func() time.Time
	Logger     *slog.Logger
	VideoLimit int
}

// Service orchestrates the geocode → fetch → assemble → store pipeline and
// the read paths over the repository.
type Service struct {
	repo       Repository
	geocoder   *Geocoder
	fetcher    *Fetcher
	assembler  *Assembler
	videos     VideoProvider
	maps       MapLinker
	recorder   Recorder
	now        func() time.Time
	logger     *slog.Logger
	videoLimit int
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Geocoder == nil || cfg.Current == nil || cfg.Repository == nil {
		panic("weather: geocoder, current provider and repository are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	limit := cfg.VideoLimit
	if limit <= 0 {
		limit = DefaultVideoLimit
	}

	geocoder := NewGeocoder(cfg.Geocoder, logger)
	fetcher := NewFetcher(cfg.Current, cfg.Historical, cfg.Recorder, logger)

	return &Service{
		repo:       cfg.Repository,
		geocoder:   geocoder,
		fetcher:    fetcher,
		assembler:  NewAssembler(geocoder, fetcher, clock, logger),
		videos:     cfg.Videos,
		maps:       cfg.Maps,
		recorder:   cfg.Recorder,
		now:        clock,
		logger:     logger,
		videoLimit: limit,
	}
}

// CurrentWeather is the result of a current-conditions lookup.
type CurrentWeather struct {
	RequestedLocation string      `json:"requestedLocation"`
	Location          Location    `json:"location"`
	Current           Observation `json:"current"`
}

// GetCurrent geocodes text and fetches current conditions there. A fetch
// failure is fatal to the request.
func (s *Service) GetCurrent(ctx context.Context, text string) (CurrentWeather, error) {
	loc, err := s.geocoder.Resolve(ctx, text)
	if err != nil {
		return CurrentWeather{}, err
	}
	obs, err := s.fetcher.FetchCurrent(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return CurrentWeather{}, err
	}
	return CurrentWeather{
		RequestedLocation: strings.TrimSpace(text),
		Location:          loc,
		Current:           obs,
	}, nil
}

// CreateRecord assembles a record from req and persists it.
func (s *Service) CreateRecord(ctx context.Context, req AssembleRequest) (HistoryRecord, error) {
	rec, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		s.observe("create", err)
		return HistoryRecord{}, err
	}
	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		s.logStoreError(ctx, "create", "", err)
		s.observe("create", err)
		return HistoryRecord{}, err
	}
	s.observe("create", nil)
	s.logger.InfoContext(ctx, "history record created",
		slog.String("id", stored.ID),
		slog.String("input", stored.InputLocation),
		slog.Int("observations", len(stored.WeatherSeries)),
	)
	return stored, nil
}

// ListRecords returns every record, newest first.
func (s *Service) ListRecords(ctx context.Context) ([]HistoryRecord, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		s.logStoreError(ctx, "list", "", err)
		return nil, err
	}
	return recs, nil
}

// GetRecord returns a single record.
func (s *Service) GetRecord(ctx context.Context, id string) (HistoryRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logStoreError(ctx, "get", id, err)
		return HistoryRecord{}, err
	}
	return rec, nil
}

// UpdateRecord applies patch. changed is false when nothing differed.
func (s *Service) UpdateRecord(ctx context.Context, id string, patch RecordPatch) (HistoryRecord, bool, error) {
	if patch.IsEmpty() {
		return HistoryRecord{}, false, NewValidationError("userNotes", "no updatable fields provided")
	}
	rec, changed, err := s.repo.Update(ctx, id, patch, s.now())
	if err != nil {
		s.logStoreError(ctx, "update", id, err)
		s.observe("update", err)
		return HistoryRecord{}, false, err
	}
	s.observe("update", nil)
	return rec, changed, nil
}

// DeleteRecord removes a record. Deleting twice yields NotFound.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logStoreError(ctx, "delete", id, err)
	}
	s.observe("delete", err)
	return err
}

// SearchVideos returns up to limit videos about the named place. A limit
// outside 1..MaxVideoLimit falls back to the configured default.
func (s *Service) SearchVideos(ctx context.Context, name string, limit int) ([]Video, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("location", MsgMissingField)
	}
	if s.videos == nil {
		return nil, ErrFeatureUnavailable
	}
	if limit <= 0 || limit > MaxVideoLimit {
		limit = s.videoLimit
	}

	videos, err := s.videos.Search(ctx, name, limit)
	if err != nil {
		if errors.Is(err, ErrFeatureUnavailable) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "video search failed",
			slog.String("provider", s.videos.Name()),
			slog.String("target", name),
			slog.Any("error", err),
		)
		var uerr *UpstreamError
		if errors.As(err, &uerr) {
			return nil, err
		}
		return nil, NewUpstreamError(s.videos.Name(), name, err)
	}
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

// GetMapLink returns an embeddable map url when a map credential is
// configured, otherwise the geocoded coordinates of name.
func (s *Service) GetMapLink(ctx context.Context, name string) (MapLink, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MapLink{}, NewValidationError("location", MsgMissingField)
	}

	var search string
	if s.maps != nil {
		search = s.maps.SearchURL(name)
		if embed, ok := s.maps.EmbedURL(name); ok {
			return MapLink{Type: MapLinkEmbed, Data: embed, SearchURL: search}, nil
		}
	}

	loc, err := s.geocoder.Resolve(ctx, name)
	if err != nil {
		s.logger.WarnContext(ctx, "map link unavailable",
			slog.String("input", name),
			slog.Any("error", err),
		)
		return MapLink{}, errors.Join(ErrFeatureUnavailable, errors.New("no map credential and geocoding failed"))
	}
	return MapLink{Type: MapLinkCoordinates, Data: loc, SearchURL: search}, nil
}

// Extras bundles the auxiliary lookups for a place.
type Extras struct {
	Location string  `json:"location"`
	Videos   []Video `json:"videos"`
	Map      MapLink `json:"map"`
}

// GetExtras combines videos and the map link. Videos are left empty when the
// feature is disabled or the provider fails.
func (s *Service) GetExtras(ctx context.Context, name string) (Extras, error) {
	link, err := s.GetMapLink(ctx, name)
	if err != nil {
		return Extras{}, err
	}
	videos, err := s.SearchVideos(ctx, name, 0)
	if err != nil {
		videos = []Video{}
	}
	return Extras{Location: strings.TrimSpace(name), Videos: videos, Map: link}, nil
}

// Ping checks the repository.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) observe(op string, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = Kind(err)
	}
	s.recorder.RecordOperation(op, outcome)
}

func (s *Service) logStoreError(ctx context.Context, op, id string, err error) {
	if !errors.Is(err, ErrPersistence) {
		return
	}
	s.logger.ErrorContext(ctx, "store operation failed",
		slog.String("operation", op),
		slog.String("id", id),
		slog.Any("error", err),
	)
}

package weather_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-history/internal/weather"
)

func d(y int, m time.Month, day int) weather.Date {
	return weather.Date{Year: y, Month: m, Day: day}
}

func TestCreateRecord_SyntheticSeries(t *testing.T) {
	f := newFixture()
	svc := f.service()

	rec, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location:  "Paris",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-03",
		UserNotes: "first trip",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Paris", rec.InputLocation)
	assert.Equal(t, paris, rec.ResolvedLocation)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rec.DateRange.Start)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), rec.DateRange.End)
	assert.Equal(t, []weather.Observation{
		{Date: d(2024, 1, 1), AvgTemp: 10, MinTemp: 5, MaxTemp: 15, Condition: weather.ConditionCloudy, Precipitation: 2},
		{Date: d(2024, 1, 3), AvgTemp: 12, MinTemp: 7, MaxTemp: 17, Condition: weather.ConditionClear},
	}, rec.WeatherSeries)
	assert.Equal(t, "first trip", rec.UserNotes)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	assert.Equal(t, []string{"none"}, f.recorder.fallbacks)
	assert.Equal(t, []string{"create:ok"}, f.recorder.operations)

	got, err := svc.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCreateRecord_SameDayRange(t *testing.T) {
	svc := newFixture().service()

	rec, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Paris", StartDate: "2024-03-10", EndDate: "2024-03-10",
	})
	require.NoError(t, err)
	require.Len(t, rec.WeatherSeries, 2)
	assert.Equal(t, rec.WeatherSeries[0].Date, rec.WeatherSeries[1].Date)
}

func TestCreateRecord_DateTimeWithOffset(t *testing.T) {
	svc := newFixture().service()

	rec, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location:  "Paris",
		StartDate: "2024-01-01T23:30:00+02:00",
		EndDate:   "2024-01-02T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 21, 30, 0, 0, time.UTC), rec.DateRange.Start)
	assert.Equal(t, d(2024, 1, 1), rec.WeatherSeries[0].Date)
}

func TestCreateRecord_MixedOffsetsKeepDaysOrdered(t *testing.T) {
	req := weather.AssembleRequest{
		Location:  "Paris",
		StartDate: "2024-01-02T01:00:00+05:00",
		EndDate:   "2024-01-01T21:00:00Z",
	}

	t.Run("synthetic", func(t *testing.T) {
		rec, err := newFixture().service().CreateRecord(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC), rec.DateRange.Start)
		require.Len(t, rec.WeatherSeries, 2)
		assert.Equal(t, d(2024, 1, 1), rec.WeatherSeries[0].Date)
		assert.Equal(t, d(2024, 1, 1), rec.WeatherSeries[1].Date)
	})

	t.Run("live", func(t *testing.T) {
		f := newFixture()
		hist := &fakeHistorical{series: []weather.Observation{{Date: d(2024, 1, 1)}}}
		f.historical = hist
		_, err := f.service().CreateRecord(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, d(2024, 1, 1), hist.start)
		assert.Equal(t, d(2024, 1, 1), hist.end)
	})
}

func TestCreateRecord_SeriesDaysAreUTC(t *testing.T) {
	f := newFixture()
	hist := &fakeHistorical{series: []weather.Observation{}}
	f.historical = hist

	_, err := f.service().CreateRecord(context.Background(), weather.AssembleRequest{
		Location:  "Paris",
		StartDate: "2024-03-01T23:00:00-05:00",
		EndDate:   "2024-03-05",
	})
	require.NoError(t, err)
	assert.Equal(t, d(2024, 3, 2), hist.start)
	assert.Equal(t, d(2024, 3, 5), hist.end)
	assert.False(t, hist.end.Before(hist.start))
}

func TestCreateRecord_ValidationBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name  string
		req   weather.AssembleRequest
		field string
		msg   string
	}{
		{"empty location", weather.AssembleRequest{StartDate: "2024-01-01", EndDate: "2024-01-02"}, "location", weather.MsgMissingField},
		{"whitespace location", weather.AssembleRequest{Location: " \t", StartDate: "2024-01-01", EndDate: "2024-01-02"}, "location", weather.MsgMissingField},
		{"missing start", weather.AssembleRequest{Location: "Paris", EndDate: "2024-01-02"}, "startDate", weather.MsgMissingField},
		{"bad start", weather.AssembleRequest{Location: "Paris", StartDate: "yesterday", EndDate: "2024-01-02"}, "startDate", weather.MsgBadDateFormat},
		{"bad end", weather.AssembleRequest{Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-13-40"}, "endDate", weather.MsgBadDateFormat},
		{"no offset", weather.AssembleRequest{Location: "Paris", StartDate: "2024-01-01T10:00:00", EndDate: "2024-01-02"}, "startDate", weather.MsgBadDateFormat},
		{"start after end", weather.AssembleRequest{Location: "Paris", StartDate: "2024-02-01", EndDate: "2024-01-01"}, "startDate", weather.MsgStartAfterEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			hist := &fakeHistorical{}
			f.historical = hist
			svc := f.service()

			_, err := svc.CreateRecord(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, weather.ErrInvalidInput)

			var verr *weather.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.msg, verr.Message)

			assert.Zero(t, f.geocoder.calls.Load())
			assert.Zero(t, hist.calls.Load())
			assert.Zero(t, f.repo.creates.Load())
			assert.Equal(t, []string{"create:invalid_input"}, f.recorder.operations)
		})
	}
}

func TestCreateRecord_LocationNotFound(t *testing.T) {
	f := newFixture()
	f.geocoder.matches = nil
	svc := f.service()

	_, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Atlantis", StartDate: "2024-01-01", EndDate: "2024-01-02",
	})
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Zero(t, f.repo.creates.Load())
}

func TestCreateRecord_GeocoderErrorIsNotFound(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture()
	f.geocoder.err = errors.New("connection reset")
	svc := weather.NewService(weather.ServiceConfig{
		Geocoder:   f.geocoder,
		Current:    f.current,
		Repository: f.repo,
		Logger:     slog.New(slog.NewJSONHandler(&buf, nil)),
	})

	_, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-02",
	})
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.NotErrorIs(t, err, weather.ErrUpstream)
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), `"provider":"fake-geo"`)
}

func TestCreateRecord_LiveHistory(t *testing.T) {
	f := newFixture()
	live := []weather.Observation{
		{Date: d(2024, 1, 1), AvgTemp: 3, MinTemp: 1, MaxTemp: 5, Condition: weather.ConditionSnow},
		{Date: d(2024, 1, 2), AvgTemp: 4, MinTemp: 2, MaxTemp: 6, Condition: weather.ConditionRain, Precipitation: 1.5},
		{Date: d(2024, 1, 3), AvgTemp: 5, MinTemp: 3, MaxTemp: 7, Condition: weather.ConditionClear},
	}
	f.historical = &fakeHistorical{series: live}
	svc := f.service()

	rec, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-03",
	})
	require.NoError(t, err)
	assert.Equal(t, live, rec.WeatherSeries)
	assert.Empty(t, f.recorder.fallbacks)
}

func TestCreateRecord_LiveHistoryFailureFallsBack(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture()
	f.historical = &fakeHistorical{err: errors.New("503 from archive")}
	svc := weather.NewService(weather.ServiceConfig{
		Geocoder:   f.geocoder,
		Current:    f.current,
		Historical: f.historical,
		Repository: f.repo,
		Recorder:   f.recorder,
		Logger:     slog.New(slog.NewJSONHandler(&buf, nil)),
	})

	rec, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-03",
	})
	require.NoError(t, err)
	require.Len(t, rec.WeatherSeries, 2)
	assert.Equal(t, weather.ConditionCloudy, rec.WeatherSeries[0].Condition)
	assert.Equal(t, []string{"fake-history"}, f.recorder.fallbacks)
	assert.Contains(t, buf.String(), `"synthetic":true`)
	assert.Contains(t, buf.String(), "503 from archive")
}

func TestCreateRecord_EmptyLiveSeriesIsKept(t *testing.T) {
	f := newFixture()
	f.historical = &fakeHistorical{series: nil}
	svc := f.service()

	rec, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-03",
	})
	require.NoError(t, err)
	assert.NotNil(t, rec.WeatherSeries)
	assert.Empty(t, rec.WeatherSeries)
}

func TestCreateRecord_PersistenceFailure(t *testing.T) {
	f := newFixture()
	f.repo.fail = true
	svc := f.service()

	_, err := svc.CreateRecord(context.Background(), weather.AssembleRequest{
		Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-03",
	})
	assert.ErrorIs(t, err, weather.ErrPersistence)
	assert.Equal(t, "persistence_error", weather.Kind(err))
	assert.Equal(t, "storage is unavailable", weather.PublicMessage(err))
	assert.Equal(t, []string{"create:persistence_error"}, f.recorder.operations)
}

func TestGetCurrent(t *testing.T) {
	f := newFixture()
	f.current.obs = weather.Observation{Date: d(2024, 6, 1), AvgTemp: 21, Condition: weather.ConditionClear}
	svc := f.service()

	cw, err := svc.GetCurrent(context.Background(), "  Paris ")
	require.NoError(t, err)
	assert.Equal(t, "Paris", cw.RequestedLocation)
	assert.Equal(t, paris, cw.Location)
	assert.Equal(t, 21.0, cw.Current.AvgTemp)
}

func TestGetCurrent_Failures(t *testing.T) {
	f := newFixture()
	svc := f.service()
	_, err := svc.GetCurrent(context.Background(), "")
	assert.ErrorIs(t, err, weather.ErrInvalidInput)
	assert.Zero(t, f.geocoder.calls.Load())

	f = newFixture()
	f.current.err = errors.New("timeout talking to api.example")
	svc = f.service()
	_, err = svc.GetCurrent(context.Background(), "Paris")
	assert.ErrorIs(t, err, weather.ErrUpstream)
	assert.Equal(t, "upstream_error", weather.Kind(err))
	assert.NotContains(t, weather.PublicMessage(err), "api.example")
	assert.Equal(t, int32(1), f.current.calls.Load(), "current weather must not be retried here")
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, weather.AssembleRequest{Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-02"})
	require.NoError(t, err)

	_, _, err = svc.UpdateRecord(ctx, rec.ID, weather.RecordPatch{})
	assert.ErrorIs(t, err, weather.ErrInvalidInput)

	notes := "sunny after all"
	updated, changed, err := svc.UpdateRecord(ctx, rec.ID, weather.RecordPatch{UserNotes: &notes})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, notes, updated.UserNotes)
	assert.True(t, updated.UpdatedAt.After(rec.UpdatedAt))

	again, changed, err := svc.UpdateRecord(ctx, rec.ID, weather.RecordPatch{UserNotes: &notes})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, updated.UpdatedAt, again.UpdatedAt)

	require.NoError(t, svc.DeleteRecord(ctx, rec.ID))
	assert.ErrorIs(t, svc.DeleteRecord(ctx, rec.ID), weather.ErrNotFound)
	_, err = svc.GetRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, weather.ErrNotFound)
	_, err = svc.GetRecord(ctx, "garbage")
	assert.ErrorIs(t, err, weather.ErrInvalidID)

	all, err := svc.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSearchVideos(t *testing.T) {
	f := newFixture()
	_, err := f.service().SearchVideos(context.Background(), "Paris", 5)
	assert.ErrorIs(t, err, weather.ErrFeatureUnavailable)

	videos := &fakeVideos{}
	f.videos = videos
	svc := f.service()

	got, err := svc.SearchVideos(context.Background(), "Paris", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, videos.limit)

	got, err = svc.SearchVideos(context.Background(), "Paris", 0)
	require.NoError(t, err)
	assert.Len(t, got, weather.DefaultVideoLimit)

	_, err = svc.SearchVideos(context.Background(), "Paris", 100)
	require.NoError(t, err)
	assert.Equal(t, weather.DefaultVideoLimit, videos.limit)

	_, err = svc.SearchVideos(context.Background(), " ", 3)
	assert.ErrorIs(t, err, weather.ErrInvalidInput)

	videos.err = errors.New("quota exceeded")
	_, err = svc.SearchVideos(context.Background(), "Paris", 3)
	assert.ErrorIs(t, err, weather.ErrUpstream)
}

func TestGetMapLink(t *testing.T) {
	f := newFixture()
	f.maps = fakeMaps{key: "k"}
	link, err := f.service().GetMapLink(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, weather.MapLink{Type: weather.MapLinkEmbed, Data: "embed:Paris", SearchURL: "search:Paris"}, link)
	assert.Zero(t, f.geocoder.calls.Load())

	f = newFixture()
	f.maps = fakeMaps{}
	link, err = f.service().GetMapLink(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, weather.MapLink{Type: weather.MapLinkCoordinates, Data: paris, SearchURL: "search:Paris"}, link)

	f = newFixture()
	f.geocoder.err = errors.New("down")
	_, err = f.service().GetMapLink(context.Background(), "Paris")
	assert.ErrorIs(t, err, weather.ErrFeatureUnavailable)
}

func TestGetExtras(t *testing.T) {
	f := newFixture()
	f.maps = fakeMaps{key: "k"}
	f.videos = &fakeVideos{}

	extras, err := f.service().GetExtras(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", extras.Location)
	assert.Len(t, extras.Videos, weather.DefaultVideoLimit)
	assert.Equal(t, weather.MapLinkEmbed, extras.Map.Type)

	f.videos = nil
	extras, err = f.service().GetExtras(context.Background(), "Paris")
	require.NoError(t, err)
	assert.NotNil(t, extras.Videos)
	assert.Empty(t, extras.Videos)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() {
		weather.NewService(weather.ServiceConfig{})
	})
}

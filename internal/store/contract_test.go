package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-history/internal/weather"
)

// newRecord builds a valid, not yet stored record created at ts.
func newRecord(input string, ts time.Time) weather.HistoryRecord {
	ts = weather.Timestamp(ts)
	return weather.HistoryRecord{
		InputLocation: input,
		ResolvedLocation: weather.Location{
			Name:    "Paris",
			Lat:     48.85,
			Lon:     2.35,
			Country: "FR",
		},
		DateRange: weather.DateRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		WeatherSeries: []weather.Observation{
			{Date: weather.Date{Year: 2024, Month: time.January, Day: 1}, AvgTemp: 10, MinTemp: 5, MaxTemp: 15, Condition: weather.ConditionCloudy, Precipitation: 2},
			{Date: weather.Date{Year: 2024, Month: time.January, Day: 3}, AvgTemp: 12, MinTemp: 7, MaxTemp: 17, Condition: weather.ConditionClear},
		},
		UserNotes: "first trip",
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// runRepositoryContract exercises the behaviour every weather.Repository must share.
// badID must be malformed for the store; missingID well-formed but unknown.
func runRepositoryContract(t *testing.T, repo weather.Repository, badID, missingID string) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create then get round trips", func(t *testing.T) {
		in := newRecord("Paris", base)
		created, err := repo.Create(ctx, in)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		in.ID = created.ID
		assert.Equal(t, in, got)
	})

	t.Run("create rejects invalid record", func(t *testing.T) {
		in := newRecord("", base)
		_, err := repo.Create(ctx, in)
		require.Error(t, err)
		assert.ErrorIs(t, err, weather.ErrInvalidInput)

		in = newRecord("Paris", base)
		in.DateRange.Start, in.DateRange.End = in.DateRange.End, in.DateRange.Start
		_, err = repo.Create(ctx, in)
		assert.ErrorIs(t, err, weather.ErrInvalidInput)
	})

	t.Run("list orders by createdAt descending", func(t *testing.T) {
		older, err := repo.Create(ctx, newRecord("older", base.Add(-time.Hour)))
		require.NoError(t, err)
		newer, err := repo.Create(ctx, newRecord("newer", base.Add(time.Hour)))
		require.NoError(t, err)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 2)

		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "list not ordered at %d", i)
		}
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, older.ID, all[len(all)-1].ID)
	})

	t.Run("update notes then repeat reports no change", func(t *testing.T) {
		created, err := repo.Create(ctx, newRecord("Paris", base))
		require.NoError(t, err)

		notes := "rained all week"
		updated, changed, err := repo.Update(ctx, created.ID, weather.RecordPatch{UserNotes: &notes}, base)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, notes, updated.UserNotes)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, notes, got.UserNotes)
		assert.Equal(t, updated.UpdatedAt, got.UpdatedAt)

		again, changed, err := repo.Update(ctx, created.ID, weather.RecordPatch{UserNotes: &notes}, base.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, updated.UpdatedAt, again.UpdatedAt)
	})

	t.Run("empty patch changes nothing", func(t *testing.T) {
		created, err := repo.Create(ctx, newRecord("Paris", base))
		require.NoError(t, err)

		got, changed, err := repo.Update(ctx, created.ID, weather.RecordPatch{}, base.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, created.UpdatedAt, got.UpdatedAt)
	})

	t.Run("delete then get and delete again report not found", func(t *testing.T) {
		created, err := repo.Create(ctx, newRecord("Paris", base))
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, created.ID))

		_, err = repo.Get(ctx, created.ID)
		assert.ErrorIs(t, err, weather.ErrNotFound)

		err = repo.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, weather.ErrNotFound)
	})

	t.Run("malformed id is distinct from missing id", func(t *testing.T) {
		_, err := repo.Get(ctx, badID)
		assert.ErrorIs(t, err, weather.ErrInvalidID)
		assert.NotErrorIs(t, err, weather.ErrNotFound)

		_, err = repo.Get(ctx, missingID)
		assert.ErrorIs(t, err, weather.ErrNotFound)

		notes := "x"
		_, _, err = repo.Update(ctx, badID, weather.RecordPatch{UserNotes: &notes}, base)
		assert.ErrorIs(t, err, weather.ErrInvalidID)
		_, _, err = repo.Update(ctx, missingID, weather.RecordPatch{UserNotes: &notes}, base)
		assert.ErrorIs(t, err, weather.ErrNotFound)

		assert.ErrorIs(t, repo.Delete(ctx, badID), weather.ErrInvalidID)
		assert.ErrorIs(t, repo.Delete(ctx, missingID), weather.ErrNotFound)
	})

	t.Run("concurrent creates get distinct ids", func(t *testing.T) {
		const n = 20
		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := repo.Create(ctx, newRecord("Paris", base))
				if assert.NoError(t, err) {
					ids <- rec.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		created, err := repo.Create(ctx, newRecord("Paris", base))
		require.NoError(t, err)

		const n = 10
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			notes := string(rune('a' + i))
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := repo.Update(ctx, created.ID, weather.RecordPatch{UserNotes: &notes}, base)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, got.UserNotes, 1)
		assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

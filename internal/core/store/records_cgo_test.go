//go:build cgo

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/searchprobe/searchprobe/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenAndMigrate(context.Background(), config.StoreConfig{
		Driver: "libsql",
		Path:   "file:" + t.TempDir() + "/searchprobe.db",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func floatPtr(v float64) *float64 { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestListSearchesGoalFilterMatchesWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i, goal := range []string{"100% wool yarn", "1000 wool socks", "deck_stain", "deck stain"} {
		result := &core.SearchResult{ID: string(rune('a' + i))}
		require.NoError(t, store.RecordSearch(ctx, core.SearchQuery{Goal: goal, CountryCode: "US"}, result))
	}

	percent, err := store.ListSearches(ctx, HistoryQuery{Goal: "100%"})
	require.NoError(t, err)
	require.Len(t, percent, 1)
	require.Equal(t, "100% wool yarn", percent[0].Query.Goal)

	underscore, err := store.ListSearches(ctx, HistoryQuery{Goal: "deck_"})
	require.NoError(t, err)
	require.Len(t, underscore, 1)
	require.Equal(t, "deck_stain", underscore[0].Query.Goal)
}

func TestSearchHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	query := core.SearchQuery{Goal: "violin tutor", Location: "Austin, TX", CountryCode: "US", LocationBased: true}
	result := &core.SearchResult{
		ID:    "abc",
		Count: 1,
		Results: []core.Vendor{{
			Name:     "Joe's Violin",
			Contacts: core.Contacts{Email: core.MultipleContact("a@b.com", "c@d.com"), Address: "123 St"},
			Source:   "http://x",
			Provider: []string{"self"},
		}},
		Meta: core.Meta{Time: 1.2, SearchQuery: "violin tutor", Solution: "ok", SearchSpace: []string{"a", "b"}},
	}
	require.NoError(t, store.RecordSearch(ctx, query, result))
	require.NoError(t, store.RecordSearch(ctx, core.SearchQuery{Goal: "logo design", CountryCode: "US"}, &core.SearchResult{ID: "def"}))

	entries, err := store.ListSearches(ctx, HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	filtered, err := store.ListSearches(ctx, HistoryQuery{Goal: "violin"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "abc", filtered[0].SearchID)
	require.Equal(t, 1, filtered[0].ResultCount)
	require.True(t, filtered[0].Query.LocationBased)
	require.Nil(t, filtered[0].Result)

	entry, err := store.GetSearch(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "Austin, TX", entry.Query.Location)
	require.NotNil(t, entry.Result)
	require.Equal(t, "Joe's Violin", entry.Result.Results[0].Name)
	require.Equal(t, []string{"a@b.com", "c@d.com"}, entry.Result.Results[0].Contacts.Email.Values())
	require.Equal(t, []string{"a", "b"}, entry.Result.Meta.SearchSpace)

	_, err = store.GetSearch(ctx, "missing")
	require.True(t, errors.Is(err, ErrSearchNotFound))

	pruned, err := store.PruneSearches(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), pruned)
}

func TestEnrichmentCache(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	key := core.EnrichmentKey{Vendor: "joe's violin", Source: "http://x", Location: "austin, tx", CountryCode: "US"}

	cached, err := store.GetEnrichment(ctx, key)
	require.NoError(t, err)
	require.Nil(t, cached)

	require.NoError(t, store.SetEnrichment(ctx, key, &core.ReverseLookup{Rating: floatPtr(4.5)}, time.Hour))

	cached, err = store.GetEnrichment(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.InDelta(t, 4.5, *cached.Rating, 0.001)

	other := key
	other.CountryCode = "CA"
	cached, err = store.GetEnrichment(ctx, other)
	require.NoError(t, err)
	require.Nil(t, cached)

	require.NoError(t, store.SetEnrichment(ctx, key, &core.ReverseLookup{Detail: "ambiguous"}, time.Hour))
	cached, err = store.GetEnrichment(ctx, key)
	require.NoError(t, err)
	require.True(t, cached.Rejected())

	require.NoError(t, store.SetEnrichment(ctx, other, &core.ReverseLookup{Rating: floatPtr(3)}, 0))
	cached, err = store.GetEnrichment(ctx, other)
	require.NoError(t, err)
	require.Nil(t, cached)
}

func TestFeedbackLog(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	submission := core.FeedbackSubmission{
		SearchID: "abc",
		Prompt:   "violin tutor",
		Message:  "Great match",
		Rating:   8,
		Snapshot: []core.Vendor{{Name: "Joe's Violin"}},
	}
	require.NoError(t, store.RecordFeedback(ctx, submission, 500, errors.New("server fault 500")))
	require.NoError(t, store.RecordFeedback(ctx, submission, 200, nil))
	require.NoError(t, store.RecordFeedback(ctx, core.FeedbackSubmission{SearchID: "other", Rating: 1}, 0, errors.New("refused")))

	entries, err := store.ListFeedback(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.False(t, entries[0].Accepted())
	require.Equal(t, 500, entries[0].StatusCode)
	require.True(t, entries[1].Accepted())
	require.Equal(t, 1, entries[1].VendorCount)
	require.Equal(t, "Great match", entries[1].Message)

	all, err := store.ListFeedback(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRateLimitState(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	state, err := store.GetRateLimit(ctx, "search")
	require.NoError(t, err)
	require.Nil(t, state)

	backoff := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, store.UpdateRateLimit(ctx, "search", &core.RateLimitState{
		RequestCount: 3,
		WindowStart:  time.Now().UTC(),
		BackoffUntil: &backoff,
	}))
	require.NoError(t, store.UpdateRateLimit(ctx, "feedback", &core.RateLimitState{RequestCount: 1, WindowStart: time.Now().UTC()}))

	state, err = store.GetRateLimit(ctx, "search")
	require.NoError(t, err)
	require.Equal(t, 3, state.RequestCount)
	require.NotNil(t, state.BackoffUntil)
	require.True(t, backoff.Equal(*state.BackoffUntil))

	entries, err := store.ListRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "feedback", entries[0].Route)

	backingOff, err := store.ListRateLimits(ctx, RateLimitQuery{All: true, BackingOff: true})
	require.NoError(t, err)
	require.Len(t, backingOff, 1)
	require.Equal(t, "search", backingOff[0].Route)

	preview, err := store.ResetRateLimits(ctx, RateLimitQuery{Route: "search"}, true)
	require.NoError(t, err)
	require.Equal(t, RateLimitReset{Matched: 1, DryRun: true}, preview)

	report, err := store.ResetRateLimits(ctx, RateLimitQuery{Prefix: "sea"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Matched)
	require.Equal(t, int64(1), report.Deleted)

	remaining, err := store.ListRateLimits(ctx, RateLimitQuery{Prefix: "%"})
	require.NoError(t, err)
	require.Empty(t, remaining, "prefix wildcards are matched literally")

	_, err = store.ListRateLimits(ctx, RateLimitQuery{})
	require.Error(t, err)
}

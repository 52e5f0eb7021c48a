package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brew-intelligence/models"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

func testRetry() *utils.RetryConfig {
	return &utils.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: utils.NewNopLogger()}
}

func newMigrationStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func rawReview(url, origin, price, date, roast string) *models.Review {
	return &models.Review{
		URL:        url,
		Slug:       Slug(url),
		Title:      "Review " + Slug(url),
		Roaster:    "Roaster",
		Origin:     origin,
		Price:      price,
		ReviewDate: date,
		RoastLevel: roast,
		Rating:     92,
	}
}

func TestMigratorNormalizesUnmigratedRows(t *testing.T) {
	ctx := context.Background()
	store := newMigrationStore(t)

	require.NoError(t, store.UpsertReview(ctx, rawReview("https://x/review/a/", "Yirgacheffe, Ethiopia", "$18.00/12 ounces", "March 2021", "Medium-Light")))
	require.NoError(t, store.UpsertReview(ctx, rawReview("https://x/review/b/", "Unknown", "N/A", "Unknown", "Unknown")))
	require.NoError(t, store.UpsertReview(ctx, rawReview("https://x/review/c/", "Kenya", "NT $450/8 ounces", "2019", "Dark")))

	m := NewMigrator(store, newTestNormalizer(t), testRetry(), 2, utils.NewNopLogger())
	stats, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, stats.Updated)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, stats.Country)
	assert.Equal(t, 2, stats.Weight)
	assert.Equal(t, 2, stats.Year)
	assert.Equal(t, 2, stats.Roast)

	n, err := store.CountUnmigrated(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "every row carries the processed marker")

	reviews, err := store.FetchReviews(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, models.PriceKnown, reviews[0].PriceStatus())
	assert.Equal(t, 1.5, *reviews[0].PricePerOzUSD)
	assert.Equal(t, models.PriceUnavailable, reviews[1].PriceStatus())
	assert.Nil(t, reviews[1].Country)
}

func TestMigratorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMigrationStore(t)
	require.NoError(t, store.UpsertReview(ctx, rawReview("https://x/review/a/", "Panama", "$40.00/8 ounces", "June 2023", "Light")))

	m := NewMigrator(store, newTestNormalizer(t), testRetry(), 10, utils.NewNopLogger())
	first, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)

	second, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Pending)
	assert.Zero(t, second.Processed)
}

// flakyReviewStore fails UpdateDerived for the listed ids.
type flakyReviewStore struct {
	reviews []*models.Review
	failIDs map[int64]bool
	updated map[int64]models.Derived
	fetches int
}

func (s *flakyReviewStore) UpsertReview(context.Context, *models.Review) error { return nil }

func (s *flakyReviewStore) ExistingURLs(context.Context) (map[string]struct{}, error) {
	return nil, nil
}

func (s *flakyReviewStore) FetchUnmigrated(_ context.Context, afterID int64, limit int) ([]*models.Review, error) {
	s.fetches++
	var out []*models.Review
	for _, r := range s.reviews {
		if r.ID <= afterID || r.PricePerOzUSD != nil {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *flakyReviewStore) CountUnmigrated(context.Context) (int, error) {
	n := 0
	for _, r := range s.reviews {
		if r.PricePerOzUSD == nil {
			n++
		}
	}
	return n, nil
}

func (s *flakyReviewStore) UpdateDerived(_ context.Context, id int64, d models.Derived) error {
	if s.failIDs[id] {
		return fmt.Errorf("update %d: %w", id, errors.New("connection reset"))
	}
	s.updated[id] = d
	for _, r := range s.reviews {
		if r.ID == id {
			r.Derived = d
		}
	}
	return nil
}

func TestMigratorSkipsFailedRows(t *testing.T) {
	store := &flakyReviewStore{failIDs: map[int64]bool{2: true}, updated: make(map[int64]models.Derived)}
	for i := int64(1); i <= 5; i++ {
		r := rawReview(fmt.Sprintf("https://x/review/%d/", i), "Brazil", "$12.00/12 ounces", "2020", "Medium")
		r.ID = i
		store.reviews = append(store.reviews, r)
	}

	m := NewMigrator(store, newTestNormalizer(t), testRetry(), 2, utils.NewNopLogger())
	stats, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 4, stats.Updated)
	assert.Equal(t, 1, stats.Failed)
	assert.NotContains(t, store.updated, int64(2))
	assert.Equal(t, 3, store.fetches, "keyset paging does not refetch the failed row")

	pending, err := store.CountUnmigrated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestMigratorStopsOnCancel(t *testing.T) {
	store := &flakyReviewStore{updated: make(map[int64]models.Derived)}
	r := rawReview("https://x/review/1/", "Brazil", "$12.00/12 ounces", "2020", "Medium")
	r.ID = 1
	store.reviews = append(store.reviews, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMigrator(store, newTestNormalizer(t), testRetry(), 2, utils.NewNopLogger())
	_, err := m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.updated)
}

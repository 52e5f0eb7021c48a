package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brew-intelligence/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func sampleReview(url string) *models.Review {
	return &models.Review{
		URL:             url,
		Slug:            "ethiopia-guji",
		Title:           "Ethiopia Guji",
		Roaster:         "Roaster A",
		RoasterLocation: "Portland, Oregon",
		RoastLevel:      "Light",
		Origin:          "Guji Zone, Ethiopia",
		Agtron:          "60/78",
		Price:           "$18.00 / 12 ounces",
		ReviewDate:      "March 2021",
		Rating:          94,
		Aroma:           9,
		Acidity:         9,
		Body:            9,
		Flavor:          9,
		Aftertaste:      8,
		BlindAssessment: "Bright, floral.",
		Embedding:       []float64{0.1, 0.2},
		Derived: models.Derived{
			Country:       ptr("Ethiopia"),
			Currency:      ptr("USD"),
			PriceNumeric:  ptr(18.0),
			WeightOz:      ptr(12.0),
			WeightUnit:    ptr("oz"),
			PricePerOzUSD: ptr(1.5),
			ReviewYear:    ptr(2021),
			RoastCategory: ptr("Light"),
		},
	}
}

func TestUpsertReviewAndFetch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertReview(ctx, sampleReview("https://example.com/review/a/")))

	reviews, err := s.FetchReviews(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	got := reviews[0]
	assert.NotZero(t, got.ID)
	assert.Equal(t, "Ethiopia Guji", got.Title)
	assert.Equal(t, 94, got.Rating)
	require.NotNil(t, got.PricePerOzUSD)
	assert.Equal(t, 1.5, *got.PricePerOzUSD)
	require.NotNil(t, got.ReviewYear)
	assert.Equal(t, 2021, *got.ReviewYear)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertReviewIsIdempotentByURL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleReview("https://example.com/review/a/")
	require.NoError(t, s.UpsertReview(ctx, r))

	r.Title = "Ethiopia Guji Natural"
	require.NoError(t, s.UpsertReview(ctx, r))

	reviews, err := s.FetchReviews(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Ethiopia Guji Natural", reviews[0].Title)
}

func TestUpsertReviewKeepsProcessedMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleReview("https://example.com/review/a/")
	require.NoError(t, s.UpsertReview(ctx, r))

	r.PricePerOzUSD = nil
	r.Embedding = nil
	require.NoError(t, s.UpsertReview(ctx, r))

	reviews, err := s.FetchReviews(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.NotNil(t, reviews[0].PricePerOzUSD)
	assert.Equal(t, 1.5, *reviews[0].PricePerOzUSD)

	var embedding sql.NullString
	require.NoError(t, s.db.QueryRow(`SELECT embedding FROM reviews`).Scan(&embedding))
	assert.True(t, embedding.Valid)
	assert.Equal(t, "[0.1,0.2]", embedding.String)
}

func TestFetchUnmigratedAndUpdateDerived(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		r := sampleReview(u)
		r.Derived = models.Derived{}
		require.NoError(t, s.UpsertReview(ctx, r))
	}

	n, err := s.CountUnmigrated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := s.FetchUnmigrated(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Less(t, page[0].ID, page[1].ID)

	require.NoError(t, s.UpdateDerived(ctx, page[0].ID, models.Derived{
		Country:       ptr("Ethiopia"),
		PricePerOzUSD: ptr(0.0),
	}))

	n, err = s.CountUnmigrated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := s.FetchUnmigrated(ctx, page[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, page[1].ID, rest[0].ID)
}

func TestUpdateDerivedKeepsExistingValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertReview(ctx, sampleReview("https://example.com/1")))
	reviews, err := s.FetchReviews(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	require.NoError(t, s.UpdateDerived(ctx, reviews[0].ID, models.Derived{PricePerOzUSD: ptr(2.0)}))

	reviews, err = s.FetchReviews(ctx, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, reviews[0].Country)
	assert.Equal(t, "Ethiopia", *reviews[0].Country)
	assert.Equal(t, 2.0, *reviews[0].PricePerOzUSD)
}

func TestFetchReviewsPaginates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		require.NoError(t, s.UpsertReview(ctx, sampleReview(u)))
	}

	first, err := s.FetchReviews(ctx, 0, 2)
	require.NoError(t, err)
	second, err := s.FetchReviews(ctx, 2, 2)
	require.NoError(t, err)

	assert.Len(t, first, 2)
	require.Len(t, second, 1)
	assert.Equal(t, "https://example.com/3", second[0].URL)
}

func TestExistingURLs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertReview(ctx, sampleReview("https://example.com/1")))

	urls, err := s.ExistingURLs(ctx)
	require.NoError(t, err)
	assert.Contains(t, urls, "https://example.com/1")
	assert.Len(t, urls, 1)
}

func TestUpsertAggregates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	roasters := []models.RoasterAggregate{
		{Name: "Roaster A", Location: ptr("Portland"), ReviewCount: 2, AvgRating: 93.5, TopScore: 95, AvgPricePerOz: ptr(1.75)},
		{Name: "Roaster B", ReviewCount: 1, AvgRating: 88, TopScore: 88},
	}
	require.NoError(t, s.UpsertRoasters(ctx, roasters))

	roasters[0].ReviewCount = 3
	require.NoError(t, s.UpsertRoasters(ctx, roasters[:1]))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT review_count FROM roasters WHERE name = 'Roaster A'`).Scan(&count))
	assert.Equal(t, 3, count)

	countries := []models.CountryAggregate{
		{Name: "Ethiopia", ReviewCount: 3, AvgRating: 92.3, TopScore: 95, DominantRoast: ptr("Light")},
	}
	require.NoError(t, s.UpsertCountries(ctx, countries))

	var dominant string
	require.NoError(t, s.db.QueryRow(`SELECT dominant_roast FROM countries WHERE name = 'Ethiopia'`).Scan(&dominant))
	assert.Equal(t, "Light", dominant)
}

func TestUpsertInsights(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertInsights(ctx, []models.InsightEntry{
		{Key: models.ViewTotalReviews, Data: []byte(`3`)},
		{Key: models.ViewFilterOptions, Data: []byte(`{"countries":[],"years":[]}`)},
	}))
	require.NoError(t, s.UpsertInsights(ctx, []models.InsightEntry{
		{Key: models.ViewTotalReviews, Data: []byte(`4`)},
	}))

	data, err := s.Insight(ctx, models.ViewTotalReviews)
	require.NoError(t, err)
	assert.Equal(t, "4", string(data))

	_, err = s.Insight(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTimeValueScan(t *testing.T) {
	var v timeValue
	require.NoError(t, v.Scan("2026-01-02 03:04:05"))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), v.t)

	now := time.Now()
	require.NoError(t, v.Scan(now))
	assert.Equal(t, now, v.t)

	assert.Error(t, v.Scan(42))
}

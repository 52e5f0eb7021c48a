package storage

import (
	"context"
	"time"

	"brew-intelligence/models"
)

// ReviewStore persists normalized reviews. Upserts are keyed by source URL.
type ReviewStore interface {
	UpsertReview(ctx context.Context, r *models.Review) error
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)

	// FetchUnmigrated returns up to limit reviews with id > afterID whose
	// price_per_oz_usd is still NULL, ordered by id.
	FetchUnmigrated(ctx context.Context, afterID int64, limit int) ([]*models.Review, error)
	CountUnmigrated(ctx context.Context) (int, error)
	UpdateDerived(ctx context.Context, id int64, d models.Derived) error
}

// ReviewReader pages through the whole corpus in id order.
type ReviewReader interface {
	FetchReviews(ctx context.Context, offset, limit int) ([]*models.Review, error)
}

// AggregateStore persists the output of an aggregation run.
type AggregateStore interface {
	UpsertRoasters(ctx context.Context, rows []models.RoasterAggregate) error
	UpsertCountries(ctx context.Context, rows []models.CountryAggregate) error
	// UpsertInsights writes every entry in a single transaction.
	UpsertInsights(ctx context.Context, entries []models.InsightEntry) error
}

// InsightMirror publishes cache entries to a secondary read store.
type InsightMirror interface {
	PublishInsights(ctx context.Context, entries []models.InsightEntry) error
}

// RunLocker provides run-level mutual exclusion across processes.
type RunLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// RawReviewWriter is the interface for persisting unprocessed extraction output.
type RawReviewWriter interface {
	WriteRaw(url string, fields *models.ExtractedFields) error
	Close() error
}

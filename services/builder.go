package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"brew-intelligence/embedding"
	"brew-intelligence/models"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

// ReviewBuilder turns extracted fields into normalized review records and
// persists them idempotently by source URL.
type ReviewBuilder struct {
	normalizer *Normalizer
	embedder   embedding.Embedder
	store      storage.ReviewStore
	retry      *utils.RetryConfig
	logger     *utils.Logger
}

// NewReviewBuilder wires the builder. embedder may be nil, in which case
// reviews are stored without a vector.
func NewReviewBuilder(n *Normalizer, embedder embedding.Embedder, store storage.ReviewStore,
	retry *utils.RetryConfig, logger *utils.Logger) *ReviewBuilder {
	return &ReviewBuilder{
		normalizer: n,
		embedder:   embedder,
		store:      store,
		retry:      retry,
		logger:     logger,
	}
}

// Build composes one review from the fields extracted at sourceURL. The
// derived columns are filled in, so the record counts as processed.
func (b *ReviewBuilder) Build(sourceURL string, f *models.ExtractedFields) *models.Review {
	r := &models.Review{
		URL:             sourceURL,
		Slug:            Slug(sourceURL),
		Title:           f.Title,
		Roaster:         f.Roaster,
		RoasterLocation: f.RoasterLocation,
		RoastLevel:      f.RoastLevel,
		Origin:          f.Origin,
		Agtron:          f.Agtron,
		Price:           f.Price,
		ReviewDate:      f.ReviewDate,
		Rating:          f.Rating,
		Aroma:           f.Aroma,
		Acidity:         f.Acidity,
		Body:            f.Body,
		Flavor:          f.Flavor,
		Aftertaste:      f.Aftertaste,
		BlindAssessment: f.BlindAssessment,
		Notes:           f.Notes,
		BottomLine:      f.BottomLine,
		WithMilk:        optional(f.WithMilk),
		RawContent:      optional(f.RawContent),
	}
	r.EmbedText = EmbedText(r.Title, r.BlindAssessment, r.Notes)
	r.Derived = b.normalizer.Normalize(r.Origin, r.Price, r.ReviewDate, r.RoastLevel)
	return r
}

// Save embeds the review text and upserts the record, retrying the write
// with backoff. An embedding failure is logged and the review is stored
// without a vector; any vector already stored is kept.
func (b *ReviewBuilder) Save(ctx context.Context, r *models.Review) error {
	if b.embedder != nil && r.Embedding == nil {
		vec, err := b.embedder.Embed(ctx, r.EmbedText)
		if err != nil {
			b.logger.Warn("[builder] Embedding failed for %s: %v", r.URL, err)
		} else {
			r.Embedding = vec
		}
	}

	err := b.retry.Do(ctx, "upsert "+r.URL, func() error {
		return b.store.UpsertReview(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

// EmbedText is the text handed to the embedding model.
func EmbedText(title, blindAssessment, notes string) string {
	return fmt.Sprintf("%s %s %s", title, blindAssessment, notes)
}

// Slug returns the last non-empty path segment of a review URL.
func Slug(sourceURL string) string {
	path := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		path = u.Path
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return segments[len(segments)-1]
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

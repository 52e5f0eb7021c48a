package coffeereview

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"brew-intelligence/models"
	"brew-intelligence/services"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

// Stats summarises one scrape batch.
type Stats struct {
	Attempted   int
	Fetched     int
	Saved       int
	FetchFailed int
	SaveFailed  int
	Duplicates  int
	// Coverage counts, per field, the documents where extraction found a
	// real value rather than the default.
	Coverage map[string]int
}

// Scraper fetches review pages one at a time, extracts and normalizes them,
// and persists the resulting records.
type Scraper struct {
	fetcher   Fetcher
	extractor *Extractor
	builder   *services.ReviewBuilder
	raw       storage.RawReviewWriter
	pacer     *utils.Pacer
	retry     *utils.RetryConfig
	visited   *utils.URLSet
	logger    *utils.Logger
}

// Options configures a Scraper. Raw is optional.
type Options struct {
	Fetcher   Fetcher
	Extractor *Extractor
	Builder   *services.ReviewBuilder
	Raw       storage.RawReviewWriter
	Pacer     *utils.Pacer
	Retry     *utils.RetryConfig
	Logger    *utils.Logger
}

// New creates a ready-to-use Scraper.
func New(opts Options) *Scraper {
	return &Scraper{
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		builder:   opts.Builder,
		raw:       opts.Raw,
		pacer:     opts.Pacer,
		retry:     opts.Retry,
		visited:   utils.NewURLSet(),
		logger:    opts.Logger,
	}
}

// Run processes urls sequentially with the pacing delay between fetches.
// A page that cannot be fetched or saved is logged and skipped; only
// context cancellation stops the batch early.
func (s *Scraper) Run(ctx context.Context, urls []string) (*Stats, error) {
	stats := &Stats{Coverage: make(map[string]int)}
	s.logger.Info("[scraper] Starting batch of %s URLs", humanize.Comma(int64(len(urls))))

	for i, url := range urls {
		if !s.visited.Add(url) {
			stats.Duplicates++
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("scrape aborted: %w", err)
		}
		if err := s.pacer.Wait(ctx); err != nil {
			return stats, fmt.Errorf("scrape aborted: %w", err)
		}

		stats.Attempted++
		s.logger.Info("[scraper] (%d/%d) %s", i+1, len(urls), url)

		fields, err := s.Extract(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("scrape aborted: %w", ctx.Err())
			}
			stats.FetchFailed++
			s.logger.Warn("[scraper] Skipping %s: %v", url, err)
			continue
		}
		stats.Fetched++
		for field, src := range fields.Sources {
			if src != SourceDefault {
				stats.Coverage[field]++
			}
		}

		if s.raw != nil {
			if err := s.raw.WriteRaw(url, fields); err != nil {
				s.logger.Warn("[scraper] Raw audit write failed for %s: %v", url, err)
			}
		}

		review := s.builder.Build(url, fields)
		if err := s.builder.Save(ctx, review); err != nil {
			stats.SaveFailed++
			s.logger.Error("[scraper] %v", err)
			continue
		}
		stats.Saved++
		s.logger.Info("[scraper] Synced: %s | Score: %d | Price: %s", review.Title, review.Rating, review.Price)
	}

	s.logCoverage(stats)
	return stats, nil
}

// Extract fetches one page, retrying transient failures, and extracts its fields.
func (s *Scraper) Extract(ctx context.Context, url string) (*models.ExtractedFields, error) {
	var body []byte
	err := s.retry.Do(ctx, "fetch "+url, func() error {
		b, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && !fe.Temporary() {
				return utils.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := ParseHTML(body)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(doc), nil
}

func (s *Scraper) logCoverage(stats *Stats) {
	s.logger.Info("[scraper] Batch done: %s saved, %s fetch failures, %s save failures",
		humanize.Comma(int64(stats.Saved)), humanize.Comma(int64(stats.FetchFailed)),
		humanize.Comma(int64(stats.SaveFailed)))
	if stats.Fetched == 0 {
		return
	}

	fields := make([]string, 0, len(stats.Coverage))
	for f := range stats.Coverage {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		s.logger.Info("[scraper]   %-18s %s/%s", f,
			humanize.Comma(int64(stats.Coverage[f])), humanize.Comma(int64(stats.Fetched)))
	}
}

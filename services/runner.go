package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"brew-intelligence/models"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

// AggregationLockName is the run lock shared by every aggregation process.
const AggregationLockName = "aggregate"

// RunStats reports one aggregation run.
type RunStats struct {
	Reviews    int
	Roasters   int
	Countries  int
	Insights   int
	FailedRows int
	Mirrored   bool
	Result     *models.AggregateResult
}

// RunnerOptions configures a Runner. Mirror and Locker are optional.
type RunnerOptions struct {
	Reader    storage.ReviewReader
	Store     storage.AggregateStore
	Mirror    storage.InsightMirror
	Locker    storage.RunLocker
	Insights  *InsightService
	Retry     *utils.RetryConfig
	PageSize  int
	BatchSize int
	LockTTL   time.Duration
	Now       func() time.Time
	Logger    *utils.Logger
}

// Runner drives one aggregation pass: it loads the whole corpus page by
// page, computes the rollups and views, and writes them back.
type Runner struct {
	opts RunnerOptions
}

func NewRunner(opts RunnerOptions) *Runner {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}
}

// Run executes the pass while holding the run lock. If another run holds
// the lock it returns storage.ErrLocked without touching the store.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	log := r.opts.Logger

	if r.opts.Locker != nil {
		release, err := r.opts.Locker.Acquire(ctx, AggregationLockName, r.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire aggregation lock: %w", err)
		}
		defer release()
	}

	reviews, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := &RunStats{Reviews: len(reviews)}
	if len(reviews) == 0 {
		log.Warn("[aggregate] No reviews found, nothing to write")
		stats.Result = r.opts.Insights.Aggregate(nil, r.opts.Now())
		return stats, nil
	}

	result := r.opts.Insights.Aggregate(reviews, r.opts.Now())
	stats.Result = result

	failed, err := writeBatches(ctx, r, "roasters", result.Roasters, r.opts.Store.UpsertRoasters,
		func(a models.RoasterAggregate) string { return a.Name })
	if err != nil {
		return stats, err
	}
	stats.Roasters = len(result.Roasters) - failed
	stats.FailedRows += failed
	log.Info("[aggregate] Upserted %s roasters", humanize.Comma(int64(stats.Roasters)))

	failed, err = writeBatches(ctx, r, "countries", result.Countries, r.opts.Store.UpsertCountries,
		func(a models.CountryAggregate) string { return a.Name })
	if err != nil {
		return stats, err
	}
	stats.Countries = len(result.Countries) - failed
	stats.FailedRows += failed
	log.Info("[aggregate] Upserted %s countries", humanize.Comma(int64(stats.Countries)))

	entries, err := r.opts.Insights.Entries(result.Views)
	if err != nil {
		return stats, err
	}
	// All views are flushed together so an interrupted run leaves the
	// previous cache in place.
	err = r.opts.Retry.Do(ctx, "upsert insights", func() error {
		return r.opts.Store.UpsertInsights(ctx, entries)
	})
	if err != nil {
		return stats, fmt.Errorf("write insights cache: %w", err)
	}
	stats.Insights = len(entries)
	log.Info("[aggregate] Cached %d insight keys", stats.Insights)

	if r.opts.Mirror != nil {
		if err := r.opts.Mirror.PublishInsights(ctx, entries); err != nil {
			log.Warn("[aggregate] Mirror publish failed: %v", err)
		} else {
			stats.Mirrored = true
		}
	}
	return stats, nil
}

// FetchAll pages through the corpus in id order until a short page.
func (r *Runner) FetchAll(ctx context.Context) ([]*models.Review, error) {
	var all []*models.Review
	for offset := 0; ; offset += r.opts.PageSize {
		var page []*models.Review
		err := r.opts.Retry.Do(ctx, fmt.Sprintf("fetch reviews at %d", offset), func() error {
			var err error
			page, err = r.opts.Reader.FetchReviews(ctx, offset, r.opts.PageSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch reviews at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < r.opts.PageSize {
			break
		}
	}
	r.opts.Logger.Info("[aggregate] Fetched %s reviews", humanize.Comma(int64(len(all))))
	return all, nil
}

// writeBatches upserts rows in fixed-size batches. A batch that still fails
// after retries is written row by row so one bad row does not drop its
// neighbours. It returns the number of rows that could not be written.
func writeBatches[T any](ctx context.Context, r *Runner, table string, rows []T,
	write func(context.Context, []T) error, name func(T) string) (int, error) {
	failed := 0
	size := r.opts.BatchSize
	for start := 0; start < len(rows); start += size {
		batch := rows[start:min(start+size, len(rows))]

		err := r.opts.Retry.Do(ctx, "upsert "+table, func() error { return write(ctx, batch) })
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return failed, fmt.Errorf("upsert %s: %w", table, ctx.Err())
		}
		r.opts.Logger.Warn("[aggregate] %s batch at %d failed, retrying row by row: %v", table, start, err)

		for _, row := range batch {
			err := r.opts.Retry.Do(ctx, "upsert "+table+" "+name(row), func() error {
				return write(ctx, []T{row})
			})
			if err != nil {
				if ctx.Err() != nil {
					return failed, fmt.Errorf("upsert %s: %w", table, ctx.Err())
				}
				failed++
				r.opts.Logger.Error("[aggregate] Skipping %s %q: %v", table, name(row), err)
			}
		}
	}
	return failed, nil
}

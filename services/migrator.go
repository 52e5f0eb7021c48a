package services

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"brew-intelligence/models"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

// MigrationStats counts what one migration pass did. The field counters
// record how many updated rows gained each derived value.
type MigrationStats struct {
	Pending   int
	Processed int
	Updated   int
	Failed    int

	Country  int
	Price    int
	PriceUSD int
	Currency int
	Weight   int
	Year     int
	Roast    int
}

// Migrator recomputes the derived columns of reviews that were stored
// before normalization ran.
type Migrator struct {
	store      storage.ReviewStore
	normalizer *Normalizer
	retry      *utils.RetryConfig
	batchSize  int
	logger     *utils.Logger
}

func NewMigrator(store storage.ReviewStore, n *Normalizer, retry *utils.RetryConfig,
	batchSize int, logger *utils.Logger) *Migrator {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Migrator{
		store:      store,
		normalizer: n,
		retry:      retry,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run walks every unmigrated row in id order and writes its derived
// columns. Rows are selected by keyset so a row that fails to update is
// not fetched again in the same pass. A failed row is logged and skipped;
// it stays unmigrated and is picked up by the next run.
func (m *Migrator) Run(ctx context.Context) (*MigrationStats, error) {
	stats := &MigrationStats{}

	pending, err := m.store.CountUnmigrated(ctx)
	if err != nil {
		return stats, fmt.Errorf("count unmigrated: %w", err)
	}
	stats.Pending = pending
	if pending == 0 {
		m.logger.Info("[migrate] Nothing to migrate")
		return stats, nil
	}
	m.logger.Info("[migrate] %s reviews need normalization", humanize.Comma(int64(pending)))

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("migration aborted: %w", err)
		}

		batch, err := m.store.FetchUnmigrated(ctx, afterID, m.batchSize)
		if err != nil {
			return stats, fmt.Errorf("fetch unmigrated after id %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, r := range batch {
			afterID = r.ID
			stats.Processed++
			m.migrate(ctx, r, stats)
		}
		m.logger.Info("[migrate] Progress: %s/%s", humanize.Comma(int64(stats.Processed)),
			humanize.Comma(int64(pending)))

		if len(batch) < m.batchSize {
			break
		}
	}

	m.logger.Info("[migrate] Done: %s updated, %s failed", humanize.Comma(int64(stats.Updated)),
		humanize.Comma(int64(stats.Failed)))
	m.logger.Info("[migrate] Coverage: country=%d price=%d usd=%d currency=%d weight=%d year=%d roast=%d",
		stats.Country, stats.Price, stats.PriceUSD, stats.Currency, stats.Weight, stats.Year, stats.Roast)
	return stats, nil
}

func (m *Migrator) migrate(ctx context.Context, r *models.Review, stats *MigrationStats) {
	d := m.normalizer.Normalize(r.Origin, r.Price, r.ReviewDate, r.RoastLevel)

	err := m.retry.Do(ctx, fmt.Sprintf("update review %d", r.ID), func() error {
		return m.store.UpdateDerived(ctx, r.ID, d)
	})
	if err != nil {
		stats.Failed++
		m.logger.Error("[migrate] Review %d (%s): %v", r.ID, r.URL, err)
		return
	}

	stats.Updated++
	if d.Country != nil {
		stats.Country++
	}
	if d.PriceNumeric != nil {
		stats.Price++
	}
	if d.PriceUSD != nil {
		stats.PriceUSD++
	}
	if d.Currency != nil {
		stats.Currency++
	}
	if d.WeightOz != nil {
		stats.Weight++
	}
	if d.ReviewYear != nil {
		stats.Year++
	}
	if d.RoastCategory != nil {
		stats.Roast++
	}
}

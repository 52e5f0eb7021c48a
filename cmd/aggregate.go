package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"brew-intelligence/services"
	"brew-intelligence/storage"
)

func newAggregateCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild roaster and country rollups and the insight cache",
		Long: `Loads the whole review corpus, recomputes the roasters and countries
tables and every insight view, and writes the views to insights_cache in one
transaction. With REDIS_ADDR set the views are mirrored to Redis and the run
lock is held in Redis. Without REDIS_ADDR the lock is process-local and does
not exclude other processes: the caller must make sure only one aggregate or
run command writes to the store at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.aggregate(cmd.Context())
			if err != nil {
				return err
			}
			if !quiet {
				services.PrintReport(cmd.OutOrStdout(), stats)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the summary report")
	return cmd
}

func (a *app) aggregate(ctx context.Context) (*services.RunStats, error) {
	opts := services.RunnerOptions{
		Reader:    a.store,
		Store:     a.store,
		Insights:  services.NewInsightService(a.logger),
		Retry:     a.retry,
		PageSize:  a.cfg.PageSize,
		BatchSize: a.cfg.BatchSize,
		Logger:    a.logger,
	}

	if a.cfg.RedisAddr != "" {
		cache, err := storage.NewRedisCache(storage.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		defer closeQuietly(cache)
		opts.Mirror = cache
		opts.Locker = cache
		a.logger.Info("[aggregate] Mirroring insights to redis at %s", a.cfg.RedisAddr)
	} else {
		opts.Locker = storage.NewLocalLocker()
	}

	return services.NewRunner(opts).Run(ctx)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"brew-intelligence/services"
)

func newRunCmd(a *app) *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape, migrate and aggregate in one go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			scraped, err := a.scrape(ctx, opts)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			a.logger.Info("[run] Scrape stage saved %d of %d reviews", scraped.Saved, scraped.Attempted)

			migrated, err := a.migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("[run] Migrate stage updated %d reviews", migrated.Updated)

			stats, err := a.aggregate(ctx)
			if err != nil {
				return fmt.Errorf("aggregate: %w", err)
			}
			services.PrintReport(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	addScrapeFlags(cmd, opts)
	return cmd
}

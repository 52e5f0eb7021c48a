package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"brew-intelligence/services"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Normalize stored reviews that have not been normalized yet",
		Long: `Selects every stored review whose price_per_oz_usd is still NULL and
writes its derived columns: country, currency, price, weight, price per ounce,
review year and roast category. Rows that fail are skipped and retried on the
next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.migrate(cmd.Context())
			return err
		},
	}
}

func (a *app) migrate(ctx context.Context) (*services.MigrationStats, error) {
	normalizer, err := services.NewNormalizer(a.rules, a.logger)
	if err != nil {
		return nil, err
	}
	m := services.NewMigrator(a.store, normalizer, a.retry, a.cfg.BatchSize, a.logger)
	return m.Run(ctx)
}

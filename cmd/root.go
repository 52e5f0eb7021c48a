// Package cmd wires the pipeline stages into the brew-intelligence CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"brew-intelligence/config"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

// app holds what every subcommand shares once the root command has set up.
type app struct {
	cfg    *config.Config
	rules  *config.Rules
	logger *utils.Logger
	store  *storage.SQLStore
	retry  *utils.RetryConfig

	storeDriver string
	logLevel    string
	rulesPath   string
}

// Execute runs the CLI and exits non-zero on failure. SIGINT and SIGTERM
// cancel the running stage between documents.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "brew-intelligence",
		Short: "Scrape, normalize and aggregate coffee reviews",
		Long: `brew-intelligence ingests coffee review pages and turns them into a
queryable corpus with precomputed insight views.

Stages:
  scrape     fetch review pages, extract fields, normalize and store them
  migrate    normalize stored reviews that predate normalization
  aggregate  rebuild the roaster and country rollups and the insight cache
  run        all three stages in order

Configuration is read from .env and the environment (STORE_DRIVER,
POSTGRES_*, SQLITE_PATH, REDIS_ADDR, FETCH_MODE, EMBEDDING_PROVIDER, ...).
Flags override the environment for a single run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.storeDriver, "store", "",
		"storage backend: postgres or sqlite (default $STORE_DRIVER)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn or error (default $LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.rulesPath, "rules", "",
		"normalization rules file (default: embedded rules)")

	root.AddCommand(newScrapeCmd(a), newMigrateCmd(a), newAggregateCmd(a), newRunCmd(a))
	return root, a
}

func (a *app) setup() error {
	a.cfg = config.Load()
	if a.storeDriver != "" {
		a.cfg.StoreDriver = a.storeDriver
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if a.rulesPath != "" {
		a.cfg.RulesPath = a.rulesPath
	}

	a.logger = utils.NewLogger(a.cfg.LogLevel)
	a.retry = &utils.RetryConfig{
		MaxAttempts: a.cfg.MaxRetries,
		BaseDelay:   time.Duration(a.cfg.RetryBaseDelayMs) * time.Millisecond,
		Logger:      a.logger,
	}

	rules, err := config.LoadRules(a.cfg.RulesPath)
	if err != nil {
		return err
	}
	a.rules = rules

	store, err := openStore(a.cfg)
	if err != nil {
		a.logger.Error("[store] %v", err)
		return err
	}
	a.store = store
	a.logger.Info("[store] Using %s store", store.Driver())
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("[store] Close failed: %v", err)
		}
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func openStore(cfg *config.Config) (*storage.SQLStore, error) {
	switch cfg.StoreDriver {
	case "postgres", "postgresql", "":
		return storage.NewPostgresStore(cfg.DSN())
	case "sqlite":
		return storage.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want postgres or sqlite)", cfg.StoreDriver)
	}
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brew-intelligence/embedding"
	"brew-intelligence/scraper/coffeereview"
	"brew-intelligence/services"
	"brew-intelligence/storage"
	"brew-intelligence/utils"
)

type scrapeOptions struct {
	urlsFile     string
	fetchMode    string
	limit        int
	offset       int
	newestFirst  bool
	skipExisting bool
}

func newScrapeCmd(a *app) *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch review pages and store normalized reviews",
		Long: `Reads review URLs from a list file, fetches each page with a fixed delay
between requests, extracts and normalizes the review and upserts it by URL.
Re-running is safe: existing reviews are updated in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.scrape(cmd.Context(), opts)
			return err
		},
	}
	addScrapeFlags(cmd, opts)
	return cmd
}

func addScrapeFlags(cmd *cobra.Command, opts *scrapeOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.urlsFile, "urls", "", "file with one review URL per line (default $URLS_FILE)")
	f.StringVar(&opts.fetchMode, "fetch", "", "fetch mode: http or browser (default $FETCH_MODE)")
	f.IntVar(&opts.limit, "limit", 0, "scrape at most this many URLs (0 = all)")
	f.IntVar(&opts.offset, "offset", 0, "skip this many URLs from the start of the list")
	f.BoolVar(&opts.newestFirst, "newest-first", false, "reverse the URL list before offset and limit")
	f.BoolVar(&opts.skipExisting, "skip-existing", false, "skip URLs that are already stored")
}

func (a *app) scrape(ctx context.Context, opts *scrapeOptions) (*coffeereview.Stats, error) {
	cfg := a.cfg
	urlsFile := firstNonEmpty(opts.urlsFile, cfg.URLsFile)

	urls, err := coffeereview.ReadURLList(urlsFile)
	if err != nil {
		return nil, err
	}

	sel := coffeereview.Selection{NewestFirst: opts.newestFirst, Offset: opts.offset, Limit: opts.limit}
	if opts.skipExisting {
		existing, err := a.store.ExistingURLs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored urls: %w", err)
		}
		sel.Skip = existing
	}
	urls = sel.Apply(urls)
	a.logger.Info("[scraper] %d URLs selected from %s", len(urls), urlsFile)
	if len(urls) == 0 {
		return &coffeereview.Stats{Coverage: map[string]int{}}, nil
	}

	fetcher, closeFetcher, err := a.fetcher(firstNonEmpty(opts.fetchMode, cfg.FetchMode))
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	extractor, err := coffeereview.NewExtractor(a.rules)
	if err != nil {
		return nil, err
	}
	normalizer, err := services.NewNormalizer(a.rules, a.logger)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.New(ctx, embedding.Config{
		Provider:     cfg.EmbeddingProvider,
		Model:        cfg.EmbeddingModel,
		Dimensions:   cfg.EmbeddingDimensions,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		a.logger.Info("[scraper] Embeddings disabled")
	}

	var raw storage.RawReviewWriter
	if cfg.CSVOutputPath != "" {
		w, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			return nil, err
		}
		defer w.Close()
		raw = w
		a.logger.Info("[scraper] Raw audit rows go to %s", cfg.CSVOutputPath)
	}

	s := coffeereview.New(coffeereview.Options{
		Fetcher:   fetcher,
		Extractor: extractor,
		Builder:   services.NewReviewBuilder(normalizer, embedder, a.store, a.retry, a.logger),
		Raw:       raw,
		Pacer:     utils.NewPacer(cfg.RateLimitMs),
		Retry:     a.retry,
		Logger:    a.logger,
	})
	return s.Run(ctx, urls)
}

func (a *app) fetcher(mode string) (coffeereview.Fetcher, func(), error) {
	timeout := time.Duration(a.cfg.RequestTimeoutMs) * time.Millisecond
	switch mode {
	case "", "http":
		return coffeereview.NewHTTPFetcher(timeout, a.cfg.UserAgent), func() {}, nil
	case "browser":
		b, err := coffeereview.NewBrowserFetcher(a.cfg.ChromeBin, a.cfg.UserAgent, timeout)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetch mode %q (want http or browser)", mode)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

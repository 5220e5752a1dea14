package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailrules/internal/config"
	"github.com/joshsymonds/mailrules/internal/fetch"
	"github.com/joshsymonds/mailrules/internal/rate"
	"github.com/joshsymonds/mailrules/internal/runtime"
	"github.com/joshsymonds/mailrules/internal/store"
)

type fetchConfig struct {
	cfgPath string
	query   string
	max     int
}

func main() {
	cfg := parseFetchFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailrules-fetch failed", "error", err)
		os.Exit(1)
	}
}

func parseFetchFlags() fetchConfig {
	cfgPath := flag.String("config", "", "path to mailrules.toml (optional)")
	query := flag.String("query", "", `provider search query (e.g. "is:unread")`)
	max := flag.Int("max", 0, "maximum messages to fetch (0 = config default)")
	flag.Parse()

	return fetchConfig{
		cfgPath: *cfgPath,
		query:   *query,
		max:     *max,
	}
}

func run(cfg fetchConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := loadConfig(cfg.cfgPath)
	if err != nil {
		return err
	}
	logger := runtime.LoggerAt(conf.LogLevel)

	client, err := runtime.NewMailClient(ctx, conf.AuthDir, runtime.ScopeReadonly)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}

	st, err := store.Open(conf.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if conf.RPS > 0 {
		bucket = rate.NewTokenBucket(conf.RPS)
		limiter = bucket
		defer bucket.Stop()
	}

	maxResults := cfg.max
	if maxResults <= 0 {
		maxResults = conf.MaxFetch
	}

	svc := fetch.NewService(client, st, limiter, logger)
	stats, err := svc.Run(ctx, fetch.Spec{
		Query:      cfg.query,
		MaxResults: maxResults,
		PageSize:   conf.PageSize,
	})
	if err != nil {
		return fmt.Errorf("run fetch: %w", err)
	}

	total, err := st.Count(ctx)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	fmt.Printf("fetched %d messages: %d new, %d already stored, %d failed (%d total in store)\n",
		stats.Fetched, stats.Saved, stats.Skipped, stats.Failed, total)
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

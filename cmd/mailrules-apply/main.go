package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joshsymonds/mailrules/internal/config"
	"github.com/joshsymonds/mailrules/internal/engine"
	"github.com/joshsymonds/mailrules/internal/rate"
	"github.com/joshsymonds/mailrules/internal/runtime"
	"github.com/joshsymonds/mailrules/internal/store"
)

type applyConfig struct {
	cfgPath string
	rules   string
	limit   int
	offset  int
	jsonOut string
	dryRun  bool
}

func main() {
	cfg := parseApplyFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailrules-apply failed", "error", err)
		os.Exit(1)
	}
}

func parseApplyFlags() applyConfig {
	cfgPath := flag.String("config", "", "path to mailrules.toml (optional)")
	rules := flag.String("rules", "", "comma separated rule documents (default: config rules_file)")
	limit := flag.Int("limit", 0, "process at most this many stored messages (0 = all)")
	offset := flag.Int("offset", 0, "skip this many stored messages")
	jsonOut := flag.String("json", "", "write JSON run reports to path")
	dryRun := flag.Bool("dry-run", false, "evaluate only; dispatch nothing")
	flag.Parse()

	return applyConfig{
		cfgPath: *cfgPath,
		rules:   *rules,
		limit:   *limit,
		offset:  *offset,
		jsonOut: *jsonOut,
		dryRun:  *dryRun,
	}
}

func run(cfg applyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := loadConfig(cfg.cfgPath)
	if err != nil {
		return err
	}
	logger := runtime.LoggerAt(conf.LogLevel)

	paths := splitList(cfg.rules)
	if len(paths) == 0 {
		paths = []string{conf.RulesFile}
	}

	// Load-time failures abort before anything is evaluated.
	sets, err := engine.LoadRuleSets(paths)
	if err != nil {
		return err
	}

	st, err := store.Open(conf.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	msgs, err := st.Messages(ctx, cfg.limit, cfg.offset)
	if err != nil {
		return fmt.Errorf("load stored messages: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Println("no stored messages; run mailrules-fetch first")
		return nil
	}

	svc := engine.NewService(nil, nil, logger)
	svc.Store = st
	if !cfg.dryRun {
		client, clientErr := runtime.NewMailClient(ctx, conf.AuthDir, runtime.ScopeModify)
		if clientErr != nil {
			return fmt.Errorf("create mail client: %w", clientErr)
		}
		svc.Provider = client
		if conf.RPS > 0 {
			bucket := rate.NewTokenBucket(conf.RPS)
			svc.Limiter = bucket
			defer bucket.Stop()
		}
	}

	reports := make([]engine.Report, 0, len(sets))
	for _, set := range sets {
		res, runErr := svc.Run(ctx, set, msgs, engine.RunOptions{DryRun: cfg.dryRun})
		if runErr != nil {
			return fmt.Errorf("run rule set %s: %w", set.ID, runErr)
		}
		rep := engine.Report{
			GeneratedAt: svc.Clock(),
			RuleSetID:   set.ID,
			RuleSetName: set.Name,
			DryRun:      cfg.dryRun,
			Stats:       res.Stats,
			Records:     res.Records,
		}
		reports = append(reports, rep)
		if printErr := engine.PrintHuman(rep, os.Stdout); printErr != nil {
			return fmt.Errorf("print report: %w", printErr)
		}
	}

	if cfg.jsonOut == "" {
		return nil
	}
	if writeErr := engine.WriteJSON(reports, cfg.jsonOut); writeErr != nil {
		return fmt.Errorf("write json: %w", writeErr)
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// mailrules-web serves a read-only JSON view of the local store: stored
// messages, per-message rule applications, and store stats. It never
// talks to the mail provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailrules/internal/config"
	"github.com/joshsymonds/mailrules/internal/runtime"
	"github.com/joshsymonds/mailrules/internal/store"
	"github.com/joshsymonds/mailrules/internal/web"
)

type webConfig struct {
	cfgPath string
	listen  string
}

func main() {
	cfg := parseWebFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailrules-web failed", "error", err)
		os.Exit(1)
	}
}

func parseWebFlags() webConfig {
	cfgPath := flag.String("config", "", "path to mailrules.toml (optional)")
	listen := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	return webConfig{
		cfgPath: *cfgPath,
		listen:  *listen,
	}
}

func run(cfg webConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := loadConfig(cfg.cfgPath)
	if err != nil {
		return err
	}
	logger := runtime.LoggerAt(conf.LogLevel)

	listen := cfg.listen
	if listen == "" {
		listen = conf.Web.Listen
	}

	st, err := store.Open(conf.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	app := web.NewApp(st, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listen)
		errCh <- app.Listen(listen)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

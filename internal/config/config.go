// Package config loads the shared mailrules.toml configuration used by the
// CLI binaries.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration. Every field has a default, so a
// partial file only overrides what it names.
type Config struct {
	AuthDir   string `toml:"auth_dir"`   // directory holding credentials.json / token.json
	DBPath    string `toml:"db_path"`    // SQLite database file
	RulesFile string `toml:"rules_file"` // default rule document for apply
	MaxFetch  int    `toml:"max_fetch"`  // default fetch cap
	PageSize  int    `toml:"page_size"`  // provider list page size (<=500)
	RPS       int    `toml:"rps"`        // max provider requests per second; 0 disables limiting
	LogLevel  string `toml:"log_level"`  // debug, info, warn, error

	Web WebConfig `toml:"web"`
}

// WebConfig configures the status server.
type WebConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AuthDir:   os.ExpandEnv("$HOME/.mailrules"),
		DBPath:    "mailrules.db",
		RulesFile: "rules.json",
		MaxFetch:  100,
		PageSize:  500,
		RPS:       4,
		LogLevel:  "info",
		Web:       WebConfig{Listen: "127.0.0.1:5000"},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges; it does not touch the filesystem.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.PageSize <= 0 || c.PageSize > 500 {
		return fmt.Errorf("page_size must be in 1..500, got %d", c.PageSize)
	}
	if c.MaxFetch <= 0 {
		return fmt.Errorf("max_fetch must be positive, got %d", c.MaxFetch)
	}
	if c.RPS < 0 {
		return fmt.Errorf("rps must not be negative, got %d", c.RPS)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

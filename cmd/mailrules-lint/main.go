// mailrules-lint validates rule documents without touching the mail
// provider or the store: every field, predicate, comparison value, and
// action token is checked the same way mailrules-apply checks them at
// load time.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joshsymonds/mailrules/internal/config"
	"github.com/joshsymonds/mailrules/internal/rules"
	"github.com/joshsymonds/mailrules/internal/runtime"
)

type lintConfig struct {
	cfgPath string
	rules   string
}

func main() {
	cfg := parseLintFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailrules-lint failed", "error", err)
		os.Exit(1)
	}
}

func parseLintFlags() lintConfig {
	cfgPath := flag.String("config", "", "path to mailrules.toml (optional)")
	rulesFlag := flag.String("rules", "", "comma separated rule documents (default: config rules_file)")
	flag.Parse()

	return lintConfig{
		cfgPath: *cfgPath,
		rules:   *rulesFlag,
	}
}

func run(cfg lintConfig) error {
	conf, err := loadConfig(cfg.cfgPath)
	if err != nil {
		return err
	}

	paths := splitList(cfg.rules)
	if len(paths) == 0 {
		paths = []string{conf.RulesFile}
	}

	failed := 0
	for _, path := range paths {
		set, loadErr := rules.Load(path)
		if loadErr != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", path, loadErr)
			continue
		}
		fmt.Printf("ok   %s: %s (%s, %d rules, %d actions)\n",
			path, set.Name, set.Comb, len(set.Rules), len(set.Actions))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rule document(s) invalid", failed, len(paths))
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

package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Report is the serializable summary of one rule document's run.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	RuleSetID   string              `json:"rule_set_id"`
	RuleSetName string              `json:"rule_set_name"`
	DryRun      bool                `json:"dry_run"`
	Stats       RunStats            `json:"stats"`
	Records     []ApplicationRecord `json:"records,omitempty"`
}

// PrintHuman writes a readable run summary to the provided writer.
func PrintHuman(rep Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	mode := ""
	if rep.DryRun {
		mode = " (dry-run)"
	}
	fmt.Fprintf(&builder, "mailrules apply — %s%s\n", rep.RuleSetName, mode)
	fmt.Fprintf(&builder, "  processed: %d\n", rep.Stats.Processed)
	fmt.Fprintf(&builder, "  matched:   %d\n", rep.Stats.Matched)
	fmt.Fprintf(&builder, "  actions:   %d\n", rep.Stats.ActionsApplied)
	fmt.Fprintf(&builder, "  failed:    %d\n", rep.Stats.Failed)
	if len(rep.Records) > 0 {
		builder.WriteString("\nApplied:\n")
		for _, rec := range rep.Records {
			tokens := make([]string, 0, len(rec.Actions))
			for _, res := range rec.Actions {
				token := res.Action
				if !res.OK {
					token += "(failed)"
				}
				tokens = append(tokens, token)
			}
			fmt.Fprintf(&builder, "  %-20s %s\n", rec.MessageID, strings.Join(tokens, ", "))
		}
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

// WriteJSON serializes one or more run reports to disk. The path must stay
// inside the working directory.
func WriteJSON(reps []Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(reps); encodeErr != nil {
		return fmt.Errorf("encode run reports: %w", encodeErr)
	}
	return nil
}

package main

import (
	"fmt"
	"path/filepath"

	"qatriage/internal/artifacts"
	"qatriage/internal/history"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runStats refreshes the history index from both stores and prints one line per test.
func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	bugs, err := artifacts.BugReports(cfg.BugReportsPath()).Load()
	if err != nil {
		return fmt.Errorf("failed to read bug reports: %w", err)
	}
	fixes, err := artifacts.FixSuggestions(cfg.FixSuggestionsPath()).Load()
	if err != nil {
		return fmt.Errorf("failed to read fix suggestions: %w", err)
	}

	idx, err := history.Open(filepath.Join(cfg.Artifacts.Dir, history.DefaultFile))
	if err != nil {
		return err
	}
	defer idx.Close()

	added, err := idx.Sync(ctx, bugs, fixes)
	if err != nil {
		return err
	}
	logger.Debug("history synced", zap.Int("added", added))

	summaries, err := idx.Summaries(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No failures recorded.")
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintf(w, "%s %s %s\n",
			indexStyle.Render(fmt.Sprintf("%3dx", s.Failures)),
			severityStyle(s.WorstSeverity).Render(fmt.Sprintf("%-10s", "["+string(s.WorstSeverity)+"]")),
			headerStyle.Render(s.TestID))
		fmt.Fprintf(w, "     %s %s\n", labelStyle.Render("Latest:"), s.LatestTitle)
		fmt.Fprintf(w, "     %s %s .. %s, %d fix suggestion(s)\n",
			labelStyle.Render("Seen:"),
			s.FirstSeen.Format("2006-01-02 15:04"),
			s.LastSeen.Format("2006-01-02 15:04"),
			s.Suggestions)
	}
	return nil
}

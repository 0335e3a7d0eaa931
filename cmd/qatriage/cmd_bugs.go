package main

import (
	"fmt"
	"strings"

	"qatriage/internal/artifacts"
	"qatriage/internal/assistant"

	"github.com/spf13/cobra"
)

func runBugs(cmd *cobra.Command, args []string) error {
	severity, _ := cmd.Flags().GetString("severity")
	testID, _ := cmd.Flags().GetString("test")
	w := cmd.OutOrStdout()

	recs, err := artifacts.BugReports(cfg.BugReportsPath()).Load()
	if err != nil {
		return fmt.Errorf("failed to read bug reports: %w", err)
	}

	var want assistant.Severity
	if severity != "" {
		want = assistant.ParseSeverity(severity)
		if !strings.EqualFold(string(want), strings.TrimSpace(severity)) {
			return fmt.Errorf("unknown severity %q (valid: Low, Medium, High, Critical)", severity)
		}
	}

	shown := 0
	for i, rec := range recs {
		if want != "" && rec.Severity != want {
			continue
		}
		if testID != "" && rec.TestID != testID {
			continue
		}
		printBug(w, fmt.Sprintf("[%d]", i+1), rec)
		shown++
	}

	if shown == 0 {
		fmt.Fprintln(w, "No bug reports found.")
		return nil
	}
	fmt.Fprintf(w, "\n%d of %d bug report(s)\n", shown, len(recs))
	return nil
}

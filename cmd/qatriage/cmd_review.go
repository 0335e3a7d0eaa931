package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"qatriage/internal/artifacts"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runReview lists stored fix suggestions and lets the user pick one to
// inspect. It never writes to the store or to any test file.
func runReview(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")
	noPrompt, _ := cmd.Flags().GetBool("no-prompt")
	w := cmd.OutOrStdout()

	path := cfg.FixSuggestionsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "No fix suggestions found.")
		return nil
	}

	recs, err := artifacts.FixSuggestions(path).Load()
	if err != nil {
		return fmt.Errorf("failed to read fix suggestions: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "No fix suggestions available.")
		return nil
	}
	logger.Debug("loaded fix suggestions", zap.String("path", path), zap.Int("count", len(recs)))

	cr := newChangesRenderer(plain)
	fmt.Fprintf(w, "Found %d fix suggestion(s):\n\n", len(recs))
	for i, rec := range recs {
		printFix(w, fmt.Sprintf("[%d]", i+1), rec, cr)
	}

	if noPrompt {
		return nil
	}

	fmt.Fprint(w, `Enter fix number to review (or "skip" to exit): `)
	answer, err := readAnswer(cmd.InOrStdin())
	if err != nil {
		return err
	}

	if answer == "" || strings.EqualFold(answer, "skip") {
		fmt.Fprintln(w, "Skipped.")
		return nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(recs) {
		fmt.Fprintln(w, "Invalid number.")
		return nil
	}

	rec := recs[n-1]
	fmt.Fprintln(w)
	printFix(w, fmt.Sprintf("[%d]", n), rec, cr)
	fmt.Fprintln(w, noticeStyle.Render("Manual application required: review the suggested changes above and edit "+rec.TestFile+" yourself."))
	return nil
}

// readAnswer reads one trimmed line. EOF without input reads as empty.
func readAnswer(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

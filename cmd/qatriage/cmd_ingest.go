package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"qatriage/internal/gotest"
	"qatriage/internal/triage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var in io.Reader = cmd.InOrStdin()
	source := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
		source = args[0]
	}

	moduleRoot, _ := cmd.Flags().GetString("module-root")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	var resolver gotest.Resolver
	if moduleRoot == "" {
		if root, err := gotest.FindModuleRoot("."); err == nil {
			moduleRoot = root
		}
	}
	if moduleRoot != "" {
		r, err := gotest.NewModuleResolver(moduleRoot)
		if err != nil {
			logger.Warn("test files will not be resolved", zap.String("module_root", moduleRoot), zap.Error(err))
		} else {
			resolver = r
		}
	}

	o, err := triage.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	var bugs, fixes atomic.Int32
	handle := func(ctx context.Context, r triage.TestResult) {
		out := o.AfterEach(ctx, r)
		if out.BugReportSaved {
			bugs.Add(1)
		}
		if out.FixSuggestionSaved {
			fixes.Add(1)
		}
		logger.Info("triaged failed test",
			zap.String("test_id", out.TestID),
			zap.String("file", r.File),
			zap.Bool("bug_report", out.BugReportSaved),
			zap.Bool("fix_suggestion", out.FixSuggestionSaved))
	}

	logger.Info("ingesting test2json stream", zap.String("source", source), zap.Int("concurrency", concurrency))
	stats, err := gotest.New(resolver, concurrency).Ingest(ctx, in, handle)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", source, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d passed, %d failed, %d skipped (%d malformed lines)\n", stats.Passed, stats.Failed, stats.Skipped, stats.Malformed)
	fmt.Fprintf(w, "%d bug report(s) -> %s\n", bugs.Load(), cfg.BugReportsPath())
	fmt.Fprintf(w, "%d fix suggestion(s) -> %s\n", fixes.Load(), cfg.FixSuggestionsPath())
	return nil
}

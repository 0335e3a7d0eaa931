package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"qatriage/internal/artifacts"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tui, _ := cmd.Flags().GetBool("tui")
	if !tui {
		return watchStores(ctx, writerSink(cmd.OutOrStdout()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newFeedModel(cfg.Artifacts.Dir), tea.WithAltScreen(), tea.WithContext(ctx))
	errCh := make(chan error, 1)
	go func() {
		errCh <- watchStores(ctx, func(entry string) { p.Send(entryMsg(entry)) })
	}()

	_, runErr := p.Run()
	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}

// writerSink serializes rendered entries onto w.
func writerSink(w io.Writer) func(string) {
	var mu sync.Mutex
	return func(entry string) {
		mu.Lock()
		defer mu.Unlock()
		io.WriteString(w, entry)
	}
}

// watchStores emits every record appended to either store until ctx is done.
func watchStores(ctx context.Context, emit func(string)) error {
	if err := os.MkdirAll(cfg.Artifacts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	bugs, err := artifacts.NewTail(artifacts.BugReports(cfg.BugReportsPath()))
	if err != nil {
		return err
	}
	fixes, err := artifacts.NewTail(artifacts.FixSuggestions(cfg.FixSuggestionsPath()))
	if err != nil {
		return err
	}

	watcher, err := artifacts.NewWatcher(cfg.Artifacts.Dir)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	cr := newChangesRenderer(true)

	if err := watcher.OnChange(cfg.BugReportsPath(), func() {
		recs, err := bugs.Next()
		if err != nil {
			logger.Warn("failed to read bug reports", zap.Error(err))
			return
		}
		for _, rec := range recs {
			var b strings.Builder
			printBug(&b, "[new bug]", rec)
			emit(b.String())
		}
	}); err != nil {
		return err
	}
	if err := watcher.OnChange(cfg.FixSuggestionsPath(), func() {
		recs, err := fixes.Next()
		if err != nil {
			logger.Warn("failed to read fix suggestions", zap.Error(err))
			return
		}
		for _, rec := range recs {
			var b strings.Builder
			printFix(&b, "[new fix]", rec, cr)
			emit(b.String())
		}
	}); err != nil {
		return err
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	logger.Info("watching artifact stores", zap.String("dir", cfg.Artifacts.Dir))

	<-ctx.Done()
	watcher.Stop()
	return nil
}

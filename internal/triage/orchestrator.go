package triage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"time"

	"qatriage/internal/artifacts"
	"qatriage/internal/assistant"
	"qatriage/internal/config"
	"qatriage/internal/llm"
	"qatriage/internal/logging"

	"golang.org/x/sync/errgroup"
)

const (
	unknownError = "Unknown error"
	noStackTrace = "No stack trace available"
)

const defaultMaxSourceBytes int64 = 256 * 1024

// Orchestrator runs both assistants for every failed test and appends their
// drafts to the artifact stores.
type Orchestrator struct {
	bugs     *assistant.BugReportAssistant
	fixes    *assistant.TestFixAssistant
	bugStore *artifacts.Store[artifacts.BugReportRecord]
	fixStore *artifacts.Store[artifacts.FixSuggestionRecord]

	enabled            bool
	bugReports         bool
	fixSuggestions     bool
	captureScreenshots bool
	screenshotsDir     string
	maxSourceBytes     int64

	now func() time.Time
}

// New builds an orchestrator around client using the stores and toggles in cfg.
func New(cfg *config.Config, client llm.Client) *Orchestrator {
	storeOpts := []artifacts.Option{artifacts.WithLockTimeout(cfg.GetLockTimeout())}
	return &Orchestrator{
		bugs:               assistant.NewBugReportAssistant(client, assistant.WithEnvironment(cfg.Triage.Environment)),
		fixes:              assistant.NewTestFixAssistant(client),
		bugStore:           artifacts.BugReports(cfg.BugReportsPath(), storeOpts...),
		fixStore:           artifacts.FixSuggestions(cfg.FixSuggestionsPath(), storeOpts...),
		enabled:            cfg.Triage.Enabled,
		bugReports:         cfg.Triage.BugReports,
		fixSuggestions:     cfg.Triage.FixSuggestions,
		captureScreenshots: cfg.Triage.CaptureScreenshots,
		screenshotsDir:     cfg.ScreenshotsPath(),
		maxSourceBytes:     cfg.Triage.MaxSourceBytes,
		now:                time.Now,
	}
}

// NewFromConfig builds the configured llm backend and an orchestrator around it.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return New(cfg, client), nil
}

// AfterEach triages r if it failed. It blocks until both drafts have been
// attempted and never panics or returns an error.
func (o *Orchestrator) AfterEach(ctx context.Context, r TestResult) (out Outcome) {
	out.TestID = TestID(r)
	defer func() {
		if p := recover(); p != nil {
			logging.TriageError("PANIC RECOVERED while triaging %q: %v\n%s", r.Title, p, debug.Stack())
		}
	}()

	logging.TriageDebug("AfterEach: test=%q id=%s status=%s", r.Title, out.TestID, r.Status)
	if r.Status != StatusFailed || !o.enabled {
		return out
	}
	out.Triaged = true

	timer := logging.StartTimer(logging.CategoryTriage, "triage "+out.TestID)
	defer timer.StopWithThreshold(2 * time.Minute)

	info := o.failedTestInfo(ctx, r, out.TestID)

	var g errgroup.Group
	if o.bugReports {
		g.Go(func() error {
			out.BugReportSaved = o.guard("bug report", r.Title,
				func() bool { return o.saveBugReport(ctx, out.TestID, info) },
				func(cause string) bool {
					return o.appendBugReport(ctx, out.TestID, info, o.bugs.FailureDraft(info, cause))
				})
			return nil
		})
	}
	if o.fixSuggestions {
		g.Go(func() error {
			out.FixSuggestionSaved = o.guard("fix suggestion", r.Title,
				func() bool { return o.saveFixSuggestion(ctx, out.TestID, r, info) },
				func(cause string) bool {
					fc := assistant.FailedTestContext{TestName: info.TestName, TestFilePath: r.File, URL: info.URL, ErrorMessage: info.ErrorMessage}
					return o.appendFixSuggestion(ctx, out.TestID, fc, assistant.FailureSuggestion(cause))
				})
			return nil
		})
	}
	_ = g.Wait()

	logging.Triage("triaged %q (id=%s): bug_report=%t fix_suggestion=%t", r.Title, out.TestID, out.BugReportSaved, out.FixSuggestionSaved)
	return out
}

// guard is the per-task error boundary. A panic in run is logged and the
// task's fallback record is appended instead, so every attempt leaves a record.
func (o *Orchestrator) guard(task, title string, run func() bool, fallback func(cause string) bool) (saved bool) {
	defer func() {
		if p := recover(); p != nil {
			logging.TriageError("PANIC RECOVERED in %s task for %q: %v\n%s", task, title, p, debug.Stack())
			saved = o.recordPanic(task, title, p, fallback)
		}
	}()
	return run()
}

func (o *Orchestrator) recordPanic(task, title string, p any, fallback func(cause string) bool) (saved bool) {
	defer func() {
		if p2 := recover(); p2 != nil {
			logging.TriageError("PANIC RECOVERED while recording %s fallback for %q: %v", task, title, p2)
			saved = false
		}
	}()
	return fallback(fmt.Sprintf("panic: %v", p))
}

func (o *Orchestrator) failedTestInfo(ctx context.Context, r TestResult, testID string) assistant.FailedTestInfo {
	info := assistant.FailedTestInfo{
		TestName:       r.Title,
		ErrorMessage:   unknownError,
		StackTrace:     noStackTrace,
		ScreenshotPath: r.ScreenshotPath,
		VideoPath:      r.VideoPath,
		Steps:          r.Steps,
	}
	if r.Error != nil {
		if r.Error.Message != "" {
			info.ErrorMessage = r.Error.Message
		}
		if r.Error.Stack != "" {
			info.StackTrace = r.Error.Stack
		}
	}
	if r.Page != nil {
		info.URL = o.pageURL(ctx, r.Page)
		if info.ScreenshotPath == "" && o.captureScreenshots {
			if taker, ok := r.Page.(ScreenshotTaker); ok {
				info.ScreenshotPath = o.captureScreenshot(ctx, taker, testID)
			}
		}
	}
	return info
}

func (o *Orchestrator) pageURL(ctx context.Context, page PageState) (url string) {
	defer func() {
		if p := recover(); p != nil {
			logging.TriageWarn("page URL lookup panicked: %v", p)
			url = ""
		}
	}()
	u, err := page.URL(ctx)
	if err != nil {
		logging.TriageWarn("could not read page URL: %v", err)
		return ""
	}
	return u
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (o *Orchestrator) captureScreenshot(ctx context.Context, taker ScreenshotTaker, testID string) (path string) {
	defer func() {
		if p := recover(); p != nil {
			logging.TriageWarn("screenshot capture panicked: %v", p)
			path = ""
		}
	}()
	if err := os.MkdirAll(o.screenshotsDir, 0755); err != nil {
		logging.TriageWarn("could not create screenshots dir %s: %v", o.screenshotsDir, err)
		return ""
	}
	name := fmt.Sprintf("%s-%d.png", unsafeFileChars.ReplaceAllString(testID, "_"), o.now().UnixNano())
	path = filepath.Join(o.screenshotsDir, name)
	if err := taker.Screenshot(ctx, path); err != nil {
		logging.TriageWarn("screenshot capture failed: %v", err)
		return ""
	}
	logging.TriageDebug("saved failure screenshot to %s", path)
	return path
}

func (o *Orchestrator) saveBugReport(ctx context.Context, testID string, info assistant.FailedTestInfo) bool {
	draft := o.bugs.GenerateBugReportDraft(ctx, info)
	return o.appendBugReport(ctx, testID, info, draft)
}

func (o *Orchestrator) appendBugReport(ctx context.Context, testID string, info assistant.FailedTestInfo, draft assistant.BugReportDraft) bool {
	rec := artifacts.NewBugReportRecord(testID, info.URL, draft, o.now())
	if err := o.bugStore.Append(ctx, rec); err != nil {
		logging.TriageError("failed to save bug report for %q: %v", info.TestName, err)
		return false
	}
	logging.Triage("bug report draft saved to %s", o.bugStore.Path())
	return true
}

func (o *Orchestrator) saveFixSuggestion(ctx context.Context, testID string, r TestResult, info assistant.FailedTestInfo) bool {
	fc := assistant.FailedTestContext{
		TestName:       info.TestName,
		TestFilePath:   r.File,
		TestCode:       readSource(r.File, o.maxSourceBytes),
		ErrorMessage:   info.ErrorMessage,
		StackTrace:     info.StackTrace,
		URL:            info.URL,
		ScreenshotPath: info.ScreenshotPath,
	}
	suggestion := o.fixes.SuggestFix(ctx, fc)
	return o.appendFixSuggestion(ctx, testID, fc, suggestion)
}

func (o *Orchestrator) appendFixSuggestion(ctx context.Context, testID string, fc assistant.FailedTestContext, s assistant.TestFixSuggestion) bool {
	rec := artifacts.NewFixSuggestionRecord(testID, fc, s, o.now())
	if err := o.fixStore.Append(ctx, rec); err != nil {
		logging.TriageError("failed to save fix suggestion for %q: %v", fc.TestName, err)
		return false
	}
	logging.Triage("fix suggestion saved to %s", o.fixStore.Path())
	return true
}

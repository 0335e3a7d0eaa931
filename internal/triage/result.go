// Package triage wires test outcomes to the bug report and fix suggestion
// assistants and persists what they produce.
package triage

import (
	"context"

	"github.com/google/uuid"
)

// Status is a test's concluded state as reported by the runner.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TestError is the failure a runner reports for a test.
type TestError struct {
	Message string
	Stack   string
}

// PageState reports the page a UI test was driving.
type PageState interface {
	URL(ctx context.Context) (string, error)
}

// ScreenshotTaker is implemented by pages that can capture themselves.
type ScreenshotTaker interface {
	Screenshot(ctx context.Context, path string) error
}

// TestResult is what the runner knows about a concluded test. Every field
// except Status may be empty.
type TestResult struct {
	ID     string
	Title  string
	File   string
	Status Status
	Error  *TestError

	// Page is the live page handle, if the test drove one.
	Page PageState

	ScreenshotPath string
	VideoPath      string
	Steps          []string
}

// Outcome summarizes one AfterEach call. It never carries an error; failures
// are logged and end in fallback records.
type Outcome struct {
	TestID             string
	Triaged            bool
	BugReportSaved     bool
	FixSuggestionSaved bool
}

var testIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("qatriage/test-id"))

// TestID returns the runner's identifier for r, or a UUIDv5 derived from the
// file and title so the same test maps to the same id across runs.
func TestID(r TestResult) string {
	if r.ID != "" {
		return r.ID
	}
	return uuid.NewSHA1(testIDNamespace, []byte(r.File+"::"+r.Title)).String()
}

package triage

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"

	"qatriage/internal/logging"
)

// Recorder wraps a testing.TB and remembers the first reported failure so it
// can be handed to the orchestrator when the test ends. Report failures and
// steps through the Recorder rather than the wrapped TB.
type Recorder struct {
	testing.TB

	mu      sync.Mutex
	message string
	stack   string
	steps   []string
	page    PageState
	outcome Outcome
}

// Watch registers triage for t. When t has failed by the time its cleanups
// run, AfterEach is called with everything the Recorder captured. Cleanups
// run last-in first-out, so call Watch after registering the cleanup that
// closes page.
func Watch(t testing.TB, o *Orchestrator, page PageState) *Recorder {
	t.Helper()
	r := &Recorder{TB: t, page: page}

	file := ""
	if _, f, _, ok := runtime.Caller(1); ok {
		file = f
	}

	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		r.mu.Lock()
		res := TestResult{
			ID:     t.Name(),
			Title:  t.Name(),
			File:   file,
			Status: StatusFailed,
			Error:  &TestError{Message: r.message, Stack: r.stack},
			Page:   r.page,
			Steps:  append([]string(nil), r.steps...),
		}
		r.mu.Unlock()

		// The test's own context is already cancelled when cleanups run.
		out := o.AfterEach(context.Background(), res)

		r.mu.Lock()
		r.outcome = out
		r.mu.Unlock()
		logging.TriageDebug("Watch: %s triaged=%t", t.Name(), out.Triaged)
	})
	return r
}

// SetPage replaces the page reported on failure.
func (r *Recorder) SetPage(page PageState) {
	r.mu.Lock()
	r.page = page
	r.mu.Unlock()
}

// Step records a manual reproduction step.
func (r *Recorder) Step(format string, args ...any) {
	r.mu.Lock()
	r.steps = append(r.steps, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// Outcome returns the result of triage. It is only meaningful after the
// wrapped test's cleanups have run.
func (r *Recorder) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

func (r *Recorder) Error(args ...any) {
	r.TB.Helper()
	r.record(fmt.Sprintln(args...))
	r.TB.Error(args...)
}

func (r *Recorder) Errorf(format string, args ...any) {
	r.TB.Helper()
	r.record(fmt.Sprintf(format, args...))
	r.TB.Errorf(format, args...)
}

func (r *Recorder) Fatal(args ...any) {
	r.TB.Helper()
	r.record(fmt.Sprintln(args...))
	r.TB.Fatal(args...)
}

func (r *Recorder) Fatalf(format string, args ...any) {
	r.TB.Helper()
	r.record(fmt.Sprintf(format, args...))
	r.TB.Fatalf(format, args...)
}

func (r *Recorder) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.message != "" {
		return
	}
	r.message = strings.TrimSpace(msg)
	r.stack = callerStack(3)
}

// callerStack formats the stack above the Recorder, stopping at the test runner.
func callerStack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		if strings.HasPrefix(frame.Function, "testing.") {
			break
		}
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

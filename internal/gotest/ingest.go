// Package gotest triages failures from a `go test -json` stream.
package gotest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"qatriage/internal/logging"
	"qatriage/internal/triage"

	"golang.org/x/sync/errgroup"
)

// Event is one test2json record.
type Event struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// Handler receives each failed test. Calls may run concurrently.
type Handler func(ctx context.Context, r triage.TestResult)

// Stats counts what an Ingest call saw.
type Stats struct {
	Events    int
	Malformed int
	Passed    int
	Failed    int
	Skipped   int
	Triaged   int
}

// Ingester turns test2json events into triage.TestResults.
type Ingester struct {
	resolver    Resolver
	concurrency int
}

// New creates an ingester. resolver may be nil, in which case reported
// files are left as the bare file names from the test output.
func New(resolver Resolver, concurrency int) *Ingester {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Ingester{resolver: resolver, concurrency: concurrency}
}

// maxLine bounds a single test2json record.
const maxLine = 4 * 1024 * 1024

// Ingest reads r to the end and calls handle once per failed test. It
// returns after every handler call has finished.
func (in *Ingester) Ingest(ctx context.Context, r io.Reader, handle Handler) (Stats, error) {
	var stats Stats
	outputs := make(map[string]*strings.Builder)
	failedNames := make(map[string][]string) // package -> failed test names

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if gctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			stats.Malformed++
			logging.IngestWarn("skipping malformed line %d: %v", lineNo, err)
			continue
		}
		stats.Events++
		if evt.Test == "" {
			// Package-level events carry no test to triage.
			continue
		}

		key := evt.Package + "\x00" + evt.Test
		switch evt.Action {
		case "output":
			b, ok := outputs[key]
			if !ok {
				b = &strings.Builder{}
				outputs[key] = b
			}
			b.WriteString(evt.Output)
		case "pass":
			stats.Passed++
			delete(outputs, key)
		case "skip":
			stats.Skipped++
			delete(outputs, key)
		case "fail":
			stats.Failed++
			output := ""
			if b, ok := outputs[key]; ok {
				output = b.String()
				delete(outputs, key)
			}
			if hasFailedSubtest(failedNames[evt.Package], evt.Test) {
				logging.Get(logging.CategoryIngest).Debug("skipping %s.%s: failure already triaged through its subtests", evt.Package, evt.Test)
				failedNames[evt.Package] = append(failedNames[evt.Package], evt.Test)
				continue
			}
			failedNames[evt.Package] = append(failedNames[evt.Package], evt.Test)

			res := in.result(evt, output)
			stats.Triaged++
			g.Go(func() error {
				handle(gctx, res)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read test2json stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	logging.Ingest("ingested %d events: %d passed, %d failed, %d skipped, %d triaged, %d malformed",
		stats.Events, stats.Passed, stats.Failed, stats.Skipped, stats.Triaged, stats.Malformed)
	return stats, nil
}

func hasFailedSubtest(failed []string, test string) bool {
	for _, name := range failed {
		if strings.HasPrefix(name, test+"/") {
			return true
		}
	}
	return false
}

// failureLine matches the "file_test.go:NN: message" prefix testing adds to t.Error output.
var failureLine = regexp.MustCompile(`^(\s*)([\w.\-]+_test\.go):(\d+): ?(.*)$`)

func (in *Ingester) result(evt Event, output string) triage.TestResult {
	message, file := extractFailure(output)
	if file != "" && in.resolver != nil {
		if dir, ok := in.resolver.Dir(evt.Package); ok {
			file = filepath.Join(dir, file)
		}
	}

	res := triage.TestResult{
		ID:     evt.Package + "." + evt.Test,
		Title:  evt.Test,
		File:   file,
		Status: triage.StatusFailed,
	}
	stack := strings.TrimSpace(output)
	if message != "" || stack != "" {
		res.Error = &triage.TestError{Message: message, Stack: stack}
	}
	return res
}

// extractFailure returns the t.Error messages in output and the first test
// file they point at. Without any such line the non-framing output is the message.
func extractFailure(output string) (message, file string) {
	var msgs []string
	var plain []string
	indent := -1

	for _, line := range strings.Split(output, "\n") {
		if m := failureLine.FindStringSubmatch(line); m != nil {
			if file == "" {
				file = m[2]
			}
			indent = len(m[1])
			msgs = append(msgs, m[4])
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			indent = -1
			continue
		}
		// Deeper-indented lines continue a multi-line message.
		if indent >= 0 && len(line)-len(strings.TrimLeft(line, " \t")) > indent && len(msgs) > 0 {
			msgs[len(msgs)-1] += "\n" + trimmed
			continue
		}
		indent = -1
		if isFraming(trimmed) {
			continue
		}
		plain = append(plain, trimmed)
	}

	if len(msgs) > 0 {
		return strings.Join(msgs, "\n"), file
	}
	return strings.Join(plain, "\n"), file
}

func isFraming(line string) bool {
	for _, p := range []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- FAIL", "--- PASS", "--- SKIP"} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

package assistant

import (
	"context"
	"fmt"
	"go/format"
	"regexp"
	"strings"

	"qatriage/internal/llm"
	"qatriage/internal/logging"
)

// FeatureRequest describes a feature to generate UI tests for.
type FeatureRequest struct {
	Description  string
	PageURL      string
	PageElements []string
}

// TestGenerator drafts test cases and go-rod test files from feature
// descriptions. Output is written for review and never run by qatriage.
type TestGenerator struct {
	llm llm.Client
}

// NewTestGenerator creates a test generator backed by client.
func NewTestGenerator(client llm.Client) *TestGenerator {
	return &TestGenerator{llm: client}
}

// GenerateTestCases asks the model for manual test cases covering req.
func (g *TestGenerator) GenerateTestCases(ctx context.Context, req FeatureRequest) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryGenerate, "GenerateTestCases")
	defer timer.Stop()

	raw, err := g.llm.GenerateText(ctx, testCasesSystemPrompt(), featureUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("failed to generate test cases: %w", err)
	}

	fields, err := parseReply(raw)
	if err != nil {
		logging.GenerateWarn("test case reply was not JSON, splitting lines: %v", err)
		return splitCases(raw), nil
	}
	cases, _ := fields.list("testCases")
	if len(cases) == 0 {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("reply has no testCases")}
	}
	logging.Generate("generated %d test case(s)", len(cases))
	return cases, nil
}

// GenerateTestFile asks the model for a go-rod test file in package pkg and
// returns it gofmt-ed. Replies that do not parse as Go are an error.
func (g *TestGenerator) GenerateTestFile(ctx context.Context, req FeatureRequest, pkg string) ([]byte, error) {
	timer := logging.StartTimer(logging.CategoryGenerate, "GenerateTestFile")
	defer timer.Stop()

	raw, err := g.llm.GenerateText(ctx, testFileSystemPrompt(pkg), featureUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("failed to generate test file: %w", err)
	}

	src := extractGoSource(raw)
	if !packageClause.MatchString(src) {
		src = "package " + pkg + "\n\n" + src
	}
	src = generatedHeader + src

	out, err := format.Source([]byte(src))
	if err != nil {
		logging.GenerateError("generated test file does not parse: %v", err)
		return nil, &ParseError{Raw: raw, Err: err}
	}
	logging.Generate("generated test file (%d bytes)", len(out))
	return out, nil
}

const generatedHeader = "// Generated by qatriage from a feature description. Review before committing.\n\n"

var (
	goFence       = regexp.MustCompile("(?s)```(?:go|golang)?[ \t]*\n(.*?)```")
	packageClause = regexp.MustCompile(`(?m)^package\s+\w+`)
	casePrefix    = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s*`)
)

// extractGoSource returns the first fenced code block in raw, or raw itself.
func extractGoSource(raw string) string {
	if m := goFence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]) + "\n"
	}
	return strings.TrimSpace(raw) + "\n"
}

func splitCases(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(casePrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func testCasesSystemPrompt() string {
	return `You are a senior QA engineer. Given a feature description, write concise manual test cases.
Each case is one sentence starting with "Verify".

Reply with a single JSON object and nothing else. It must validate against this JSON Schema:
` + testCasesSchema
}

func testFileSystemPrompt(pkg string) string {
	return `You are a senior QA automation engineer writing Go UI tests with go-rod (github.com/go-rod/rod).
Given a feature description, write one complete Go test file in package ` + pkg + `.

Rules:
- Use the standard testing package and github.com/stretchr/testify/require for assertions.
- Launch the browser with rod.New().MustConnect() and close it with t.Cleanup.
- Prefer the CSS selectors listed in the request.
- Reply with the Go source in a single ` + "```go" + ` block and nothing else.`
}

func featureUserPrompt(req FeatureRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feature description:\n%s\n\n", strings.TrimSpace(req.Description))
	fmt.Fprintf(&b, "Page URL: %s\n", orUnknown(req.PageURL))
	if len(req.PageElements) > 0 {
		b.WriteString("Page elements:\n")
		for _, el := range req.PageElements {
			fmt.Fprintf(&b, "- %s\n", el)
		}
	}
	return b.String()
}

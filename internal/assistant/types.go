// Package assistant turns failed UI tests into reviewable drafts: a bug report
// and a candidate test fix. Both assistants treat the model reply as untrusted
// text and always return a schema-valid value.
package assistant

import (
	"strings"
)

// Severity ranks a bug report draft.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity matches s case-insensitively. Unknown values become Medium.
func ParseSeverity(s string) Severity {
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev
		}
	}
	return SeverityMedium
}

// Confidence is the model's self-reported certainty in a fix suggestion.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// ParseConfidence matches s case-insensitively. Unknown values become Medium.
func ParseConfidence(s string) Confidence {
	for _, c := range []Confidence{ConfidenceLow, ConfidenceMedium, ConfidenceHigh} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c
		}
	}
	return ConfidenceMedium
}

// FailedTestInfo describes a failed test for the bug report assistant.
type FailedTestInfo struct {
	TestName       string
	ErrorMessage   string
	StackTrace     string
	ScreenshotPath string
	VideoPath      string
	URL            string
	Steps          []string
}

// attachments returns the non-empty screenshot and video paths.
func (i FailedTestInfo) attachments() []string {
	out := []string{}
	for _, p := range []string{i.ScreenshotPath, i.VideoPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// steps returns a copy of the known manual steps, never nil.
func (i FailedTestInfo) steps() []string {
	out := make([]string, 0, len(i.Steps))
	return append(out, i.Steps...)
}

// FailedTestContext describes a failed test plus its source for the fix assistant.
type FailedTestContext struct {
	TestName       string
	TestFilePath   string
	TestCode       string
	ErrorMessage   string
	StackTrace     string
	URL            string
	ScreenshotPath string
}

// BugReportDraft is a structured, human-reviewable bug report.
type BugReportDraft struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	StepsToReproduce []string `json:"stepsToReproduce"`
	ExpectedResult   string   `json:"expectedResult"`
	ActualResult     string   `json:"actualResult"`
	Severity         Severity `json:"severity"`
	Environment      string   `json:"environment"`
	Attachments      []string `json:"attachments"`
}

// TestFixSuggestion is a candidate change to a failing test. It is never applied automatically.
type TestFixSuggestion struct {
	Description      string     `json:"description"`
	SuggestedChanges string     `json:"suggestedChanges"`
	Confidence       Confidence `json:"confidence"`
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

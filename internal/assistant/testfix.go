package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qatriage/internal/llm"
	"qatriage/internal/logging"
)

// TestFixAssistant proposes fixes for failing tests. Suggestions are drafts
// for review; nothing here edits source files.
type TestFixAssistant struct {
	llm llm.Client
}

// NewTestFixAssistant creates a fix suggestion assistant backed by client.
func NewTestFixAssistant(client llm.Client) *TestFixAssistant {
	return &TestFixAssistant{llm: client}
}

// SuggestFix asks the model for a fix. It never fails.
func (a *TestFixAssistant) SuggestFix(ctx context.Context, c FailedTestContext) TestFixSuggestion {
	timer := logging.StartTimer(logging.CategoryFix, "SuggestFix")
	defer timer.Stop()

	raw, err := a.llm.GenerateText(ctx, fixSystemPrompt(), fixUserPrompt(c))
	if err != nil {
		if llm.IsCredentialError(err) {
			logging.FixWarn("credentials missing, skipping fix suggestion for %q: %v", c.TestName, err)
			return TestFixSuggestion{
				Description:      "AI test fix assistant unavailable - LLM credentials not configured",
				SuggestedChanges: fmt.Sprintf("Please configure the %s environment variable to enable AI-powered test fixes.", credentialEnvVar(err)),
				Confidence:       ConfidenceLow,
			}
		}
		logging.FixError("model call failed for %q: %v", c.TestName, err)
		return FailureSuggestion(err.Error())
	}

	fields, err := parseReply(raw)
	if err != nil {
		logging.FixWarn("unparseable fix suggestion for %q: %v", c.TestName, err)
		return TestFixSuggestion{
			Description:      "Unable to parse LLM response",
			SuggestedChanges: raw,
			Confidence:       ConfidenceLow,
		}
	}

	s := TestFixSuggestion{Description: "No description", SuggestedChanges: raw}
	if v, ok := fields.str("description"); ok {
		s.Description = v
	}
	if v, ok := fields.str("suggestedChanges"); ok {
		s.SuggestedChanges = v
	}
	conf, _ := fields.str("confidence")
	s.Confidence = ParseConfidence(conf)

	logging.Fix("fix suggestion for %q: confidence=%s", c.TestName, s.Confidence)
	return s
}

func credentialEnvVar(err error) string {
	var ce *llm.CredentialError
	if errors.As(err, &ce) && ce.EnvVar != "" {
		return ce.EnvVar
	}
	return "OPENAI_API_KEY"
}

func fixSystemPrompt() string {
	return `You are a senior QA automation engineer specializing in Go UI tests driven by go-rod.
Given a failed test, analyze the error and suggest a fix to the test code.

Reply with a single JSON object and nothing else. Use exactly these keys:
- description: brief explanation of the issue
- suggestedChanges: code snippet or diff to fix the test
- confidence: one of Low, Medium, High

The object must validate against this JSON Schema:
` + fixSchema
}

func fixUserPrompt(c FailedTestContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Test name: %s\n", c.TestName)
	fmt.Fprintf(&b, "Test file: %s\n", c.TestFilePath)
	fmt.Fprintf(&b, "URL: %s\n\n", orUnknown(c.URL))
	fmt.Fprintf(&b, "Error message:\n%s\n\n", c.ErrorMessage)
	fmt.Fprintf(&b, "Stack trace:\n%s\n\n", c.StackTrace)
	fmt.Fprintf(&b, "Test code:\n```go\n%s\n```\n\n", c.TestCode)
	b.WriteString("Analyze the failure and suggest a fix.")
	return b.String()
}

// FailureSuggestion is recorded when suggesting a fix itself failed.
func FailureSuggestion(cause string) TestFixSuggestion {
	return TestFixSuggestion{
		Description:      "Error generating suggestion: " + cause,
		SuggestedChanges: "Failed to generate fix suggestion. Error: " + cause,
		Confidence:       ConfidenceLow,
	}
}

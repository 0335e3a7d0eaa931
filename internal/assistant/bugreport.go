package assistant

import (
	"context"
	"fmt"
	"strings"

	"qatriage/internal/llm"
	"qatriage/internal/logging"
)

const (
	// TitlePrefix marks every bug report title as machine-drafted.
	TitlePrefix = "[AI Draft] "

	// ProvenanceNote opens every model-drafted description.
	ProvenanceNote = "This bug report was drafted automatically from a failed UI test and must be reviewed by a human before filing."

	// DefaultEnvironment is the execution environment recorded on drafts.
	DefaultEnvironment = "Automated UI test run (Go, go-rod/Chromium)"

	// CredentialsMissingEnvironment is recorded when drafting was skipped for lack of credentials.
	CredentialsMissingEnvironment = "AI bug report generation skipped: LLM credentials not configured"

	defaultExpectedResult = "The test scenario completes without errors."
)

// BugReportAssistant drafts bug reports for failed tests.
type BugReportAssistant struct {
	llm         llm.Client
	environment string
}

// BugReportOption configures a BugReportAssistant.
type BugReportOption func(*BugReportAssistant)

// WithEnvironment sets the execution-environment text recorded on every draft.
func WithEnvironment(env string) BugReportOption {
	return func(a *BugReportAssistant) {
		if strings.TrimSpace(env) != "" {
			a.environment = env
		}
	}
}

// NewBugReportAssistant creates a bug report assistant backed by client.
func NewBugReportAssistant(client llm.Client, opts ...BugReportOption) *BugReportAssistant {
	a := &BugReportAssistant{llm: client, environment: DefaultEnvironment}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GenerateBugReportDraft asks the model for a draft and repairs whatever comes
// back. It never fails: credential problems, provider errors and unparseable
// replies all end in a usable draft.
func (a *BugReportAssistant) GenerateBugReportDraft(ctx context.Context, info FailedTestInfo) BugReportDraft {
	timer := logging.StartTimer(logging.CategoryBugReport, "GenerateBugReportDraft")
	defer timer.Stop()

	raw, err := a.llm.GenerateText(ctx, bugReportSystemPrompt(), bugReportUserPrompt(info))
	if err != nil {
		if llm.IsCredentialError(err) {
			logging.BugReportWarn("credentials missing, skipping AI draft for %q: %v", info.TestName, err)
			return a.credentialsMissingDraft(info)
		}
		// Provider error bodies are often JSON; they must not be read as a reply.
		logging.BugReportError("model call failed for %q: %v", info.TestName, err)
		return a.FailureDraft(info, err.Error())
	}

	fields, err := parseReply(raw)
	if err != nil {
		logging.BugReportWarn("falling back to input-derived draft for %q: %v", info.TestName, err)
		return a.normalize(a.fallbackDraft(info, raw), info)
	}

	draft := BugReportDraft{}
	draft.Title, _ = fields.str("title")
	draft.Description, _ = fields.str("description")
	draft.StepsToReproduce, _ = fields.list("stepsToReproduce")
	draft.ExpectedResult, _ = fields.str("expectedResult")
	draft.ActualResult, _ = fields.str("actualResult")
	sev, _ := fields.str("severity")
	draft.Severity = Severity(sev)

	logging.BugReportDebug("parsed model draft for %q: severity=%q steps=%d", info.TestName, sev, len(draft.StepsToReproduce))
	return a.normalize(draft, info)
}

// FailureDraft is the draft recorded when drafting itself failed. cause is
// kept in the description so the record reads as a failed attempt.
func (a *BugReportAssistant) FailureDraft(info FailedTestInfo, cause string) BugReportDraft {
	return a.normalize(a.fallbackDraft(info, "Error generating AI report: "+cause), info)
}

func (a *BugReportAssistant) credentialsMissingDraft(info FailedTestInfo) BugReportDraft {
	return BugReportDraft{
		Title: TitlePrefix + info.TestName,
		Description: fmt.Sprintf("AI-assisted bug report generation was skipped for %q because no LLM credentials are configured. "+
			"The failure details below were taken directly from the test run.", info.TestName),
		StepsToReproduce: info.steps(),
		ExpectedResult:   defaultExpectedResult,
		ActualResult:     info.ErrorMessage,
		Severity:         SeverityLow,
		Environment:      CredentialsMissingEnvironment,
		Attachments:      info.attachments(),
	}
}

func (a *BugReportAssistant) fallbackDraft(info FailedTestInfo, raw string) BugReportDraft {
	return BugReportDraft{
		Title:            info.TestName,
		Description:      raw,
		StepsToReproduce: info.steps(),
		ExpectedResult:   defaultExpectedResult,
		ActualResult:     info.ErrorMessage,
		Severity:         SeverityMedium,
	}
}

// normalize enforces the draft invariants. Applying it twice is a no-op.
func (a *BugReportAssistant) normalize(d BugReportDraft, info FailedTestInfo) BugReportDraft {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "Failed test: " + info.TestName
	}
	if !strings.HasPrefix(d.Title, TitlePrefix) {
		d.Title = TitlePrefix + d.Title
	}

	if strings.TrimSpace(d.Description) == "" {
		d.Description = fmt.Sprintf("Automated test %q failed.\n\nError: %s", info.TestName, info.ErrorMessage)
	}
	if !strings.Contains(d.Description, ProvenanceNote) {
		d.Description = ProvenanceNote + "\n\n" + d.Description
	}

	if d.StepsToReproduce == nil {
		d.StepsToReproduce = []string{}
	}
	if strings.TrimSpace(d.ExpectedResult) == "" {
		d.ExpectedResult = defaultExpectedResult
	}
	if strings.TrimSpace(d.ActualResult) == "" {
		d.ActualResult = info.ErrorMessage
	}
	d.Severity = ParseSeverity(string(d.Severity))
	d.Environment = a.environment
	d.Attachments = info.attachments()
	return d
}

func bugReportSystemPrompt() string {
	return `You are a senior QA engineer writing a bug report draft for a failed automated UI test.

Reply with a single JSON object and nothing else. Use exactly these keys:
- title: one-line summary. It MUST start with "` + TitlePrefix + `".
- description: what went wrong and where.
- stepsToReproduce: ordered list of manual steps.
- expectedResult: what should have happened.
- actualResult: what happened instead.
- severity: one of Low, Medium, High, Critical.

The object must validate against this JSON Schema:
` + bugReportSchema
}

func bugReportUserPrompt(info FailedTestInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Test name: %s\n", info.TestName)
	fmt.Fprintf(&b, "URL: %s\n\n", orUnknown(info.URL))
	fmt.Fprintf(&b, "Error message:\n%s\n\n", info.ErrorMessage)
	fmt.Fprintf(&b, "Stack trace:\n%s\n", info.StackTrace)
	if len(info.Steps) > 0 {
		b.WriteString("\nKnown manual steps:\n")
		for i, s := range info.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	b.WriteString("\nDraft the bug report.")
	return b.String()
}

package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qatriage/internal/llm"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loginInfo = FailedTestInfo{
	TestName:       "login should succeed",
	ErrorMessage:   "timeout waiting for #dashboard",
	StackTrace:     "login_test.go:42",
	ScreenshotPath: "artifacts/screenshots/login.png",
	URL:            "https://app.example.com/login",
	Steps:          []string{"Open login page", "Submit valid credentials"},
}

func TestGenerateBugReportDraft_WellFormedReply(t *testing.T) {
	client := &fakeClient{reply: "Here you go:\n```json\n" + `{
		"title": "Login does not reach dashboard",
		"description": "Dashboard never renders after login.",
		"stepsToReproduce": ["Open /login", "Sign in"],
		"expectedResult": "Dashboard is shown",
		"actualResult": "Spinner forever",
		"severity": "high"
	}` + "\n```"}
	a := NewBugReportAssistant(client)

	got := a.GenerateBugReportDraft(context.Background(), loginInfo)

	want := BugReportDraft{
		Title:            "[AI Draft] Login does not reach dashboard",
		Description:      ProvenanceNote + "\n\nDashboard never renders after login.",
		StepsToReproduce: []string{"Open /login", "Sign in"},
		ExpectedResult:   "Dashboard is shown",
		ActualResult:     "Spinner forever",
		Severity:         SeverityHigh,
		Environment:      DefaultEnvironment,
		Attachments:      []string{"artifacts/screenshots/login.png"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, client.Calls())
	assert.Contains(t, client.user, "Test name: login should succeed")
	assert.Contains(t, client.user, "URL: https://app.example.com/login")
	assert.Contains(t, client.user, "timeout waiting for #dashboard")
	assert.Contains(t, client.user, "1. Open login page")
	assert.Contains(t, client.system, TitlePrefix)
	assert.Contains(t, client.system, "Critical")
}

func TestGenerateBugReportDraft_PrefixIsIdempotent(t *testing.T) {
	client := &fakeClient{reply: `{"title":"[AI Draft] Already tagged","description":"` + ProvenanceNote + `\n\nbody","severity":"Low"}`}
	got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), loginInfo)

	assert.Equal(t, "[AI Draft] Already tagged", got.Title)
	assert.Equal(t, 1, strings.Count(got.Description, ProvenanceNote))

	a := NewBugReportAssistant(client)
	again := a.normalize(got, loginInfo)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("normalize is not idempotent (-first +second):\n%s", diff)
	}
}

func TestGenerateBugReportDraft_MissingFieldsGetDefaults(t *testing.T) {
	client := &fakeClient{reply: `{"title":"Broken","severity":"catastrophic"}`}
	info := FailedTestInfo{TestName: "t", ErrorMessage: "boom", StackTrace: "s"}
	got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), info)

	assert.Equal(t, "[AI Draft] Broken", got.Title)
	assert.Equal(t, []string{}, got.StepsToReproduce)
	assert.Equal(t, defaultExpectedResult, got.ExpectedResult)
	assert.Equal(t, "boom", got.ActualResult)
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.Equal(t, []string{}, got.Attachments)
	assert.True(t, strings.HasPrefix(got.Description, ProvenanceNote))
}

func TestGenerateBugReportDraft_InvalidJSONFallsBack(t *testing.T) {
	client := &fakeClient{reply: "I could not determine the cause, sorry."}
	got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), loginInfo)

	assert.Equal(t, "[AI Draft] login should succeed", got.Title)
	assert.Equal(t, ProvenanceNote+"\n\nI could not determine the cause, sorry.", got.Description)
	assert.Equal(t, loginInfo.Steps, got.StepsToReproduce)
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.Equal(t, loginInfo.ErrorMessage, got.ActualResult)
}

func TestGenerateBugReportDraft_EmptyReply(t *testing.T) {
	client := &fakeClient{reply: ""}
	info := FailedTestInfo{TestName: "t", ErrorMessage: "boom", StackTrace: "s"}
	got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), info)

	assert.Equal(t, "[AI Draft] t", got.Title)
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.NotNil(t, got.StepsToReproduce)
}

func TestGenerateBugReportDraft_CredentialError(t *testing.T) {
	for name, err := range map[string]error{
		"typed":    &llm.CredentialError{Provider: llm.ProviderOpenAI, EnvVar: "OPENAI_API_KEY", Msg: "no key"},
		"sniffed":  errors.New("Missing credentials. Please pass an apiKey"),
		"env text": errors.New("The OPENAI_API_KEY environment variable is missing"),
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{err: err}
			got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), loginInfo)

			assert.Equal(t, 1, client.Calls(), "credential failure must not be retried")
			assert.True(t, strings.HasPrefix(got.Title, TitlePrefix))
			assert.Equal(t, SeverityLow, got.Severity)
			assert.Contains(t, strings.ToLower(got.Environment), "credentials")
			assert.Equal(t, loginInfo.Steps, got.StepsToReproduce)
			assert.Equal(t, loginInfo.ErrorMessage, got.ActualResult)
			assert.Equal(t, []string{loginInfo.ScreenshotPath}, got.Attachments)
		})
	}
}

func TestGenerateBugReportDraft_ProviderErrorStillDrafts(t *testing.T) {
	client := &fakeClient{err: &llm.ProviderError{Provider: llm.ProviderOpenAI, StatusCode: 503, Err: errors.New("overloaded")}}
	got := NewBugReportAssistant(client, WithEnvironment("CI nightly")).GenerateBugReportDraft(context.Background(), loginInfo)

	assert.Equal(t, "[AI Draft] login should succeed", got.Title)
	assert.Contains(t, got.Description, "Error generating AI report:")
	assert.Contains(t, got.Description, "overloaded")
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.Equal(t, "CI nightly", got.Environment)
}

func TestGenerateBugReportDraft_ProviderErrorWithJSONBody(t *testing.T) {
	body := `{"error":{"message":"Rate limit reached for gpt-4o-mini","type":"requests","code":"rate_limit_exceeded"}}`
	client := &fakeClient{err: &llm.ProviderError{Provider: llm.ProviderOpenAI, StatusCode: 429, Err: errors.New(body)}}

	got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), loginInfo)

	assert.Equal(t, "[AI Draft] login should succeed", got.Title)
	assert.True(t, strings.HasPrefix(got.Description, ProvenanceNote+"\n\nError generating AI report:"), got.Description)
	assert.Contains(t, got.Description, "Rate limit reached")
	assert.Equal(t, loginInfo.Steps, got.StepsToReproduce)
	assert.Equal(t, loginInfo.ErrorMessage, got.ActualResult)
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.Equal(t, 1, client.Calls())
}

func TestGenerateBugReportDraft_AttachmentsComeFromInput(t *testing.T) {
	client := &fakeClient{reply: `{"title":"x","attachments":["/etc/passwd"],"environment":"made up"}`}
	info := loginInfo
	info.VideoPath = "artifacts/video.webm"
	got := NewBugReportAssistant(client).GenerateBugReportDraft(context.Background(), info)

	require.Equal(t, []string{info.ScreenshotPath, info.VideoPath}, got.Attachments)
	assert.Equal(t, DefaultEnvironment, got.Environment)
}

func TestBugReportUserPrompt_UnknownURL(t *testing.T) {
	p := bugReportUserPrompt(FailedTestInfo{TestName: "t", ErrorMessage: "e", StackTrace: "s"})
	assert.Contains(t, p, "URL: unknown")
	assert.NotContains(t, p, "Known manual steps")
}

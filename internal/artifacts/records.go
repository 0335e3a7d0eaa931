package artifacts

import (
	"time"

	"qatriage/internal/assistant"

	"github.com/google/uuid"
)

// BugReportRecord is one element of the bug-report store.
type BugReportRecord struct {
	ID               string             `json:"id"`
	TestID           string             `json:"testId"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	StepsToReproduce []string           `json:"stepsToReproduce"`
	ExpectedResult   string             `json:"expectedResult"`
	ActualResult     string             `json:"actualResult"`
	Severity         assistant.Severity `json:"severity"`
	Environment      string             `json:"environment"`
	Attachments      []string           `json:"attachments"`
	URL              string             `json:"url"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// NewBugReportRecord stamps a draft with a fresh id and the creation time.
func NewBugReportRecord(testID, url string, d assistant.BugReportDraft, now time.Time) BugReportRecord {
	steps := d.StepsToReproduce
	if steps == nil {
		steps = []string{}
	}
	attachments := d.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return BugReportRecord{
		ID:               uuid.NewString(),
		TestID:           testID,
		Title:            d.Title,
		Description:      d.Description,
		StepsToReproduce: steps,
		ExpectedResult:   d.ExpectedResult,
		ActualResult:     d.ActualResult,
		Severity:         d.Severity,
		Environment:      d.Environment,
		Attachments:      attachments,
		URL:              url,
		CreatedAt:        now.UTC(),
	}
}

// FixSuggestionRecord is one element of the fix-suggestion store.
type FixSuggestionRecord struct {
	ID               string               `json:"id"`
	TestID           string               `json:"testId"`
	TestName         string               `json:"testName"`
	TestFile         string               `json:"testFile"`
	URL              string               `json:"url"`
	Description      string               `json:"description"`
	SuggestedChanges string               `json:"suggestedChanges"`
	Confidence       assistant.Confidence `json:"confidence"`
	CreatedAt        time.Time            `json:"createdAt"`
}

// NewFixSuggestionRecord stamps a suggestion with a fresh id and the creation time.
func NewFixSuggestionRecord(testID string, c assistant.FailedTestContext, s assistant.TestFixSuggestion, now time.Time) FixSuggestionRecord {
	return FixSuggestionRecord{
		ID:               uuid.NewString(),
		TestID:           testID,
		TestName:         c.TestName,
		TestFile:         c.TestFilePath,
		URL:              c.URL,
		Description:      s.Description,
		SuggestedChanges: s.SuggestedChanges,
		Confidence:       s.Confidence,
		CreatedAt:        now.UTC(),
	}
}

// BugReports opens the bug-report store at path.
func BugReports(path string, opts ...Option) *Store[BugReportRecord] {
	return NewStore[BugReportRecord](path, opts...)
}

// FixSuggestions opens the fix-suggestion store at path.
func FixSuggestions(path string, opts ...Option) *Store[FixSuggestionRecord] {
	return NewStore[FixSuggestionRecord](path, opts...)
}

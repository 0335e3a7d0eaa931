package main

import (
	"fmt"
	"io"
	"strings"

	"qatriage/internal/artifacts"
	"qatriage/internal/assistant"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	destructive = lipgloss.Color("#e53935")
	warning     = lipgloss.Color("#FFC107")
	caution     = lipgloss.Color("#ff8a65")
	info        = lipgloss.Color("#2196F3")
	success     = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#8a93a3")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(info)
	labelStyle  = lipgloss.NewStyle().Foreground(muted)
	indexStyle  = lipgloss.NewStyle().Bold(true).Foreground(success)
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(warning)
)

func severityStyle(s assistant.Severity) lipgloss.Style {
	switch s {
	case assistant.SeverityCritical:
		return lipgloss.NewStyle().Bold(true).Foreground(destructive)
	case assistant.SeverityHigh:
		return lipgloss.NewStyle().Foreground(caution)
	case assistant.SeverityMedium:
		return lipgloss.NewStyle().Foreground(warning)
	default:
		return lipgloss.NewStyle().Foreground(muted)
	}
}

func confidenceStyle(c assistant.Confidence) lipgloss.Style {
	switch c {
	case assistant.ConfidenceHigh:
		return lipgloss.NewStyle().Foreground(success)
	case assistant.ConfidenceMedium:
		return lipgloss.NewStyle().Foreground(warning)
	default:
		return lipgloss.NewStyle().Foreground(muted)
	}
}

// changesRenderer renders suggested changes as a fenced markdown block.
// A nil renderer prints them verbatim.
type changesRenderer struct {
	r *glamour.TermRenderer
}

func newChangesRenderer(plain bool) changesRenderer {
	if plain {
		return changesRenderer{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return changesRenderer{}
	}
	return changesRenderer{r: r}
}

func (c changesRenderer) render(changes string) string {
	if c.r == nil {
		return changes
	}
	out, err := c.r.Render(fence(changes))
	if err != nil {
		return changes
	}
	return out
}

// fence wraps changes in a code block, picking diff highlighting for patches.
func fence(changes string) string {
	lang := "go"
	trimmed := strings.TrimSpace(changes)
	if strings.HasPrefix(trimmed, "```") {
		return changes
	}
	if strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "diff ") || strings.HasPrefix(trimmed, "@@") {
		lang = "diff"
	}
	return "```" + lang + "\n" + changes + "\n```\n"
}

func printFix(w io.Writer, label string, rec artifacts.FixSuggestionRecord, cr changesRenderer) {
	fmt.Fprintf(w, "%s %s\n", indexStyle.Render(label), headerStyle.Render(rec.TestName))
	fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("File:"), rec.TestFile)
	fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Description:"), rec.Description)
	fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Confidence:"), confidenceStyle(rec.Confidence).Render(string(rec.Confidence)))
	fmt.Fprintf(w, "    %s\n", labelStyle.Render("Suggested changes:"))
	fmt.Fprintln(w, cr.render(rec.SuggestedChanges))
}

func printBug(w io.Writer, label string, rec artifacts.BugReportRecord) {
	fmt.Fprintf(w, "%s %s %s\n",
		indexStyle.Render(label),
		severityStyle(rec.Severity).Render(fmt.Sprintf("[%s]", rec.Severity)),
		headerStyle.Render(rec.Title))
	fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Test:"), rec.TestID)
	if rec.URL != "" {
		fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("URL:"), rec.URL)
	}
	fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Actual:"), firstLine(rec.ActualResult))
	fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Created:"), rec.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
	for _, a := range rec.Attachments {
		fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Attachment:"), a)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

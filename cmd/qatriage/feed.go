package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// entryMsg carries one rendered record into the feed.
type entryMsg string

// feedModel is the full-screen view behind `watch --tui`.
type feedModel struct {
	dir      string
	spinner  spinner.Model
	viewport viewport.Model
	entries  []string
	ready    bool
}

func newFeedModel(dir string) feedModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = indexStyle

	vp := viewport.New(80, 20)
	vp.SetContent("Waiting for failed tests...")

	return feedModel{dir: dir, spinner: sp, viewport: vp}
}

func (m feedModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m feedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4 // header and footer
		m.ready = true

	case entryMsg:
		m.entries = append(m.entries, string(msg))
		m.viewport.SetContent(strings.Join(m.entries, "\n"))
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m feedModel) View() string {
	header := fmt.Sprintf("%s %s %s",
		m.spinner.View(),
		headerStyle.Render("qatriage"),
		labelStyle.Render(fmt.Sprintf("watching %s (%d new)", m.dir, len(m.entries))))
	if !m.ready {
		return header + "\n"
	}
	footer := labelStyle.Render("q: quit  up/down: scroll")
	return header + "\n\n" + m.viewport.View() + "\n" + footer
}

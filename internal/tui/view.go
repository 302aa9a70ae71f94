package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateAdd:
		content = m.form.View()
	case StateConfirmDelete:
		content = m.viewConfirmDelete()
	default:
		content = m.viewList()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		content,
		m.viewFooter(),
		m.help.View(m),
	)
}

func (m Model) viewHeader() string {
	var network string
	switch {
	case !m.status.RemoteConfigured:
		network = offlineStyle.Render("local only")
	case m.status.Online:
		network = onlineStyle.Render("● online")
	default:
		network = offlineStyle.Render("○ offline")
	}

	pending := ""
	if n := m.status.Unsynced.Habits + m.status.Unsynced.Completions; n > 0 {
		pending = mutedStyle.Render(fmt.Sprintf("%d unsynced", n))
	}
	if m.status.Unsynced.Conflicts > 0 {
		pending = warningStyle.Render(fmt.Sprintf("%d conflict(s), resolve with 'tally habit resolve'", m.status.Unsynced.Conflicts))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, headerStyle.Render("tally"), network, pending)
}

func (m Model) viewList() string {
	if len(m.list.Items()) == 0 {
		return docStyle.Render(mutedStyle.Render("No habits yet. Press 'a' to add one."))
	}
	return docStyle.Render(m.list.View())
}

func (m Model) viewConfirmDelete() string {
	if m.toDelete == nil {
		return ""
	}
	return docStyle.Render(fmt.Sprintf("%s\n\n%s",
		dangerStyle.Render(fmt.Sprintf("Delete %s?", m.toDelete.Title)),
		"Completion history is kept. (y/n)"))
}

func (m Model) viewFooter() string {
	if m.err != nil {
		return dangerStyle.Render("Error: " + m.err.Error())
	}
	if m.message != "" {
		return mutedStyle.Render(m.message)
	}
	return ""
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/network"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/service"
)

type loadedMsg struct {
	habits []models.EnrichedHabit
	status service.Status
	err    error
}

type actionMsg struct {
	text string
	err  error
}

type networkMsg network.Status

type tickMsg time.Time

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		habits, err := m.svc.GetHabits(m.ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		status, err := m.svc.Status(m.ctx)
		return loadedMsg{habits: habits, status: status, err: err}
	}
}

func (m Model) waitForStatus() tea.Cmd {
	if m.opts.Statuses == nil {
		return nil
	}
	ch := m.opts.Statuses
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return networkMsg(s)
	}
}

func (m Model) tick() tea.Cmd {
	if m.opts.Refresh <= 0 {
		return nil
	}
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) do(text string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{text: text, err: fn(m.ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		listHeight := msg.Height - 4
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, listHeight-v)
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = msg.status
		return m, m.list.SetItems(toItems(msg.habits))

	case actionMsg:
		m.message = msg.text
		m.err = msg.err
		return m, m.load()

	case networkMsg:
		m.status.Network = network.Status(msg)
		m.status.Online = m.status.Network.Usable()
		return m, tea.Batch(m.load(), m.waitForStatus())

	case tickMsg:
		return m, tea.Batch(m.load(), m.tick())
	}

	switch m.state {
	case StateAdd:
		return m.updateAdd(msg)
	case StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m.updateList(msg)
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(keyMsg, m.keys.Add):
		m.habitForm = newHabitFormModel()
		m.form = NewHabitForm(m.habitForm)
		m.state = StateAdd
		m.err = nil
		return m, m.form.Init()
	case key.Matches(keyMsg, m.keys.Refresh):
		m.message = ""
		m.err = nil
		return m, m.load()
	case key.Matches(keyMsg, m.keys.Sync):
		return m, m.sync()
	}

	h, ok := m.selected()
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Done):
		notes := ""
		if h.TodayCompletion != nil {
			notes = h.TodayCompletion.Notes
		}
		return m, m.do(fmt.Sprintf("%s done for today", h.Title), func(ctx context.Context) error {
			_, err := m.svc.CompleteHabit(ctx, h.ID, h.TargetCount, notes)
			return err
		})
	case key.Matches(keyMsg, m.keys.Inc):
		return m, m.adjust(h, 1)
	case key.Matches(keyMsg, m.keys.Dec):
		return m, m.adjust(h, -1)
	case key.Matches(keyMsg, m.keys.Delete):
		m.toDelete = &h
		m.state = StateConfirmDelete
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) adjust(h models.EnrichedHabit, delta int) tea.Cmd {
	return func() tea.Msg {
		c, err := m.svc.AdjustCompletion(m.ctx, h.ID, delta)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("%s: %d/%d", h.Title, c.CompletedCount, h.TargetCount)}
	}
}

func (m Model) sync() tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.Sync(m.ctx)
		if errors.Is(err, remote.ErrNotConfigured) {
			return actionMsg{text: "no remote configured, working offline"}
		}
		if err != nil {
			return actionMsg{err: fmt.Errorf("sync incomplete: %w", err)}
		}
		return actionMsg{text: fmt.Sprintf("Synced: pushed %d, pulled %d",
			res.Habits.Pushed+res.Completions.Pushed,
			res.Habits.Pulled+res.Completions.Pulled)}
	}
}

func (m Model) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = StateList
		return m, nil
	}

	var cmds []tea.Cmd
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	cmds = append(cmds, cmd)

	switch m.form.State {
	case huh.StateCompleted:
		m.state = StateList
		in, err := m.habitForm.Input()
		if err != nil {
			m.err = err
			return m, nil
		}
		cmds = append(cmds, m.do(fmt.Sprintf("Added %s", in.Title), func(ctx context.Context) error {
			_, err := m.svc.CreateHabit(ctx, in)
			return err
		}))
	case huh.StateAborted:
		m.state = StateList
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y":
		h := *m.toDelete
		m.toDelete = nil
		m.state = StateList
		return m, m.do(fmt.Sprintf("Deleted %s", h.Title), func(ctx context.Context) error {
			return m.svc.DeleteHabit(ctx, h.ID)
		})
	case "n", "N", "esc", "q":
		m.toDelete = nil
		m.state = StateList
	}
	return m, nil
}

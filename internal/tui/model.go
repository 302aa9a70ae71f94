package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/network"
	"github.com/julianstephens/tally/internal/service"
	"github.com/julianstephens/tally/internal/syncer"
)

// Service is the part of the habit service the TUI drives
type Service interface {
	GetHabits(ctx context.Context) ([]models.EnrichedHabit, error)
	CreateHabit(ctx context.Context, in models.HabitInput) (models.Habit, error)
	CompleteHabit(ctx context.Context, habitID string, count int, notes string) (models.Completion, error)
	AdjustCompletion(ctx context.Context, habitID string, delta int) (models.Completion, error)
	DeleteHabit(ctx context.Context, habitID string) error
	Sync(ctx context.Context) (syncer.Result, error)
	Status(ctx context.Context) (service.Status, error)
}

type Options struct {
	// Statuses delivers network changes; nil when there is no monitor
	Statuses <-chan network.Status
	// Refresh reloads habits periodically so background pulls show up; zero disables it
	Refresh time.Duration
}

type SessionState int

const (
	StateList SessionState = iota
	StateAdd
	StateConfirmDelete
)

type Model struct {
	ctx       context.Context
	svc       Service
	opts      Options
	state     SessionState
	keys      KeyMap
	help      help.Model
	list      list.Model
	form      *huh.Form
	habitForm *HabitFormModel
	toDelete  *models.EnrichedHabit
	status    service.Status
	message   string
	err       error
	quitting  bool
	width     int
	height    int
}

func NewModel(ctx context.Context, svc Service, opts Options) Model {
	keys := DefaultKeyMap()

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Habits"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetStatusBarItemName("habit", "habits")
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)
	l.KeyMap.CloseFullHelp.SetEnabled(false)

	return Model{
		ctx:   ctx,
		svc:   svc,
		opts:  opts,
		state: StateList,
		keys:  keys,
		help:  help.New(),
		list:  l,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForStatus(), m.tick())
}

// ShortHelp and FullHelp make the model a help.KeyMap
func (m Model) ShortHelp() []key.Binding {
	return m.keys.ShortHelp()
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

func (m Model) selected() (models.EnrichedHabit, bool) {
	item, ok := m.list.SelectedItem().(Item)
	if !ok {
		return models.EnrichedHabit{}, false
	}
	return item.Habit, true
}

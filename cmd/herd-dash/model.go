package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"herd/pkg/eventlog"
	"herd/pkg/state"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic data refresh from the marker dir and event log.
type tickMsg time.Time

// workersMsg carries a fetched pool snapshot. nil means no pool state yet.
type workersMsg []state.WorkerInfo

// eventsMsg carries fetched dispatcher events, newest first.
type eventsMsg []eventlog.Event

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchWorkersCmd returns a tea.Cmd that reads the pool snapshot.
func fetchWorkersCmd() tea.Cmd {
	return func() tea.Msg {
		return workersMsg(fetchWorkers())
	}
}

// fetchEventsCmd returns a tea.Cmd that reads recent events.
func fetchEventsCmd() tea.Cmd {
	return func() tea.Msg {
		return eventsMsg(fetchEvents(context.Background()))
	}
}

// Model is the Bubble Tea model for the herd dashboard.
type Model struct {
	theme   Theme
	workers []state.WorkerInfo
	events  []eventlog.Event

	eventView viewport.Model
	ready     bool

	width  int
	height int
}

// newModel creates a Model with the default theme.
func newModel() Model {
	return Model{theme: DefaultTheme()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchWorkersCmd(), fetchEventsCmd(), tickCmd(), watchMarkerDir(markerDir()))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case workersMsg:
		m.workers = []state.WorkerInfo(msg)
		m.resizeViewport()

	case eventsMsg:
		m.events = []eventlog.Event(msg)
		m.eventView.SetContent(m.renderEvents())

	case fsChangeMsg:
		// Markers changed; refresh immediately and re-arm the watcher.
		return m, tea.Batch(fetchWorkersCmd(), fetchEventsCmd(), watchMarkerDir(markerDir()))

	case tickMsg:
		return m, tea.Batch(fetchWorkersCmd(), fetchEventsCmd(), tickCmd())
	}

	var cmd tea.Cmd
	m.eventView, cmd = m.eventView.Update(msg)
	return m, cmd
}

// resizeViewport fits the event viewport under the workers table.
func (m *Model) resizeViewport() {
	if m.width == 0 || m.height == 0 {
		return
	}
	headerHeight := len(m.workers) + 4
	h := m.height - headerHeight
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.eventView = viewport.New(m.width, h)
		m.ready = true
	} else {
		m.eventView.Width = m.width
		m.eventView.Height = h
	}
	m.eventView.SetContent(m.renderEvents())
}

// View implements tea.Model.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary).Render("herd")
	table := renderWorkersTable(m.workers, m.theme)

	body := m.eventView.View()
	if !m.ready {
		body = m.renderEvents()
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, table, body)
}

// renderEvents renders the event tail, newest first.
func (m Model) renderEvents() string {
	if len(m.events) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("no events yet")
	}
	var out string
	for _, ev := range m.events {
		line := fmt.Sprintf("%s  %-16s", ev.CreatedAt.Format("15:04:05"), ev.Type)
		if ev.Item != 0 {
			line += fmt.Sprintf("  item #%d", ev.Item)
		}
		if ev.Worker != 0 {
			line += fmt.Sprintf("  worker-%d", ev.Worker)
		}
		out += line + "\n"
	}
	return out
}

package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wellsgz/pingheat/internal/probe"
)

const refreshInterval = time.Second

// Message types
type (
	// SampleMsg is sent when the collector publishes a sample
	SampleMsg probe.Sample

	// TickMsg is sent periodically for refresh
	TickMsg struct{}

	// ErrMsg is sent when an error occurs
	ErrMsg struct{ Err error }
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case SampleMsg:
		m.refreshTarget(msg.Target)
		return m, waitForSample(m.samples)

	case TickMsg:
		m.refreshAll()
		return m, tick()

	case ErrMsg:
		m.err = msg.Err
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.currentView {
	case ListView:
		return m.handleListViewKeys(msg)
	case DetailView:
		return m.handleDetailViewKeys(msg)
	case HeatmapView:
		return m.handleHeatmapViewKeys(msg)
	}
	return m, nil
}

// handleListViewKeys handles keys in list view
func (m Model) handleListViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}

	case "down", "j":
		if m.selectedIdx < len(m.targets)-1 {
			m.selectedIdx++
		}

	case "enter", " ":
		m.currentView = DetailView

	case "h":
		m = m.openHeatmap()

	case "home":
		m.selectedIdx = 0

	case "end":
		m.selectedIdx = len(m.targets) - 1

	case "r":
		m.refreshAll()
	}

	return m, nil
}

// handleDetailViewKeys handles keys in detail view
func (m Model) handleDetailViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.currentView = ListView

	case "up", "k":
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}

	case "down", "j":
		if m.selectedIdx < len(m.targets)-1 {
			m.selectedIdx++
		}

	case "h":
		m = m.openHeatmap()

	case "r":
		m.refreshAll()
	}

	return m, nil
}

// handleHeatmapViewKeys handles month and series navigation
func (m Model) handleHeatmapViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.currentView = ListView

	case "left", "p":
		m = m.navigateHeat(ViewState.PrevMonth)

	case "right", "n":
		m = m.navigateHeat(ViewState.NextMonth)

	case "tab", "down", "j":
		m = m.navigateHeat(ViewState.NextSeries)

	case "shift+tab", "up", "k":
		m = m.navigateHeat(ViewState.PrevSeries)

	case "l":
		if m.store != nil && m.heatOK {
			if v, ok := LatestView(m.store.Load(), m.heat.Identity); ok {
				m.heat = v
			}
		}
	}

	return m, nil
}

// waitForSample creates a command that waits for the next sample
func waitForSample(ch <-chan probe.Sample) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		sample, ok := <-ch
		if !ok {
			return ErrMsg{Err: errCollectorStopped}
		}
		return SampleMsg(sample)
	}
}

// tick schedules the next periodic refresh
func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

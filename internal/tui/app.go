package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

var errCollectorStopped = errors.New("collector stopped")

// Init initializes the model and returns initial commands
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSample(m.samples),
		func() tea.Msg { return TickMsg{} },
	)
}

// Run starts the dashboard and blocks until the user quits or ctx is done
func Run(ctx context.Context, src Source, opts Options) error {
	p := tea.NewProgram(
		NewModel(src, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

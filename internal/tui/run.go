package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the review screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, reviewer Reviewer, cfg Config) (SessionStats, error) {
	if reviewer == nil {
		return SessionStats{}, fmt.Errorf("reviewer is required")
	}

	program := tea.NewProgram(New(reviewer, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return SessionStats{}, fmt.Errorf("review screen failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return SessionStats{}, nil
	}
	if m.lastError != nil && len(m.queue) == 0 {
		return m.stats, m.lastError
	}
	return m.stats, nil
}

// Package tui is an interactive terminal table over the projection engine.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"tasklens/internal/engine"
)

func Run(ctx context.Context, eng *engine.Engine, opts Options) error {
	m, err := New(ctx, eng, opts)
	if err != nil {
		return err
	}
	defer m.stop()
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for mix assembly.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.scanOptions(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/cadence-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine, err := r.engine()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.spotify, engine, opts)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

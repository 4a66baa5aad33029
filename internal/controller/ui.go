// Package controller provides output adapters for displaying episode progress.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	m "tbench.dev/pkg/tbench/internal/model"
)

// StartOption is a functional option for Start.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	workspace string
	maxSteps  int
}

// WithWorkspace records the workspace path shown in the UI header.
func WithWorkspace(path string) StartOption {
	return func(c *StartConfig) {
		c.workspace = path
	}
}

// WithMaxSteps records the episode step budget shown in the UI.
func WithMaxSteps(n int) StartOption {
	return func(c *StartConfig) {
		c.maxSteps = n
	}
}

// UI defines the interface for displaying episode progress.
// Implementations can use different output methods (plain text, TUI).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for the UI to finish (user closes it)
	DisplayStep(ctx context.Context, action m.Action, result m.StepResult) error
	DisplayEpisodeSummary(ctx context.Context, state m.EpisodeState) error
	DisplayIntegrityReport(ctx context.Context, report m.IntegrityReport) error
}

// NewUI selects the TUI when the output is a terminal and interactive mode
// was requested, the simple printer otherwise.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive && IsTTY(os.Stdout) {
		return NewTUI(os.Stdout)
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

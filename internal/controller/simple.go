package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "tbench.dev/pkg/tbench/internal/model"
)

// SimpleUI implements UI using cobra Command's Println.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(_ context.Context) {}

// DisplayStep prints one step on a single line.
func (s *SimpleUI) DisplayStep(ctx context.Context, action m.Action, result m.StepResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	status := "ok"
	if result.Info.Error != "" {
		status = "error: " + result.Info.Error
	}

	s.cmd.Printf("step %d/%d  %-12s reward=%.3f pass_rate=%.3f %s\n",
		result.Info.Step, result.Info.MaxSteps, string(action.Type),
		result.Reward, result.Info.PassRate, status)

	return nil
}

// DisplayEpisodeSummary renders the final episode state as a table.
func (s *SimpleUI) DisplayEpisodeSummary(ctx context.Context, state m.EpisodeState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	passRate := 0.0
	if state.LastSummary != nil {
		passRate = state.LastSummary.PassRate
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Episode", "Steps", "Mutating", "Files Changed", "Pass Rate"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.Append([]string{
		state.ID,
		fmt.Sprintf("%d/%d", state.StepCount, state.MaxSteps),
		fmt.Sprintf("%d", state.MutatingStepCount),
		fmt.Sprintf("%d", len(state.FilesChanged)),
		fmt.Sprintf("%.3f", passRate),
	})
	table.Render()

	s.cmd.Printf("\n%s", buffer.String())

	return nil
}

// DisplayIntegrityReport renders integrity findings as a table, or a short
// confirmation when the inventory is clean.
func (s *SimpleUI) DisplayIntegrityReport(ctx context.Context, report m.IntegrityReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if report.Clean() {
		s.cmd.Println("fixture inventory verified: no findings")
		return nil
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Finding", "Path"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, path := range report.MissingFiles {
		table.Append([]string{"missing", string(path)})
	}

	for _, path := range report.UndersizedFiles {
		table.Append([]string{"undersized", string(path)})
	}

	for _, path := range report.ChecksumMismatches {
		table.Append([]string{"checksum mismatch", string(path)})
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d", report.FindingCount())})
	table.Render()

	s.cmd.Printf("\n%s", buffer.String())

	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/controller"
	"tbench.dev/pkg/tbench/internal/domain"
	"tbench.dev/pkg/tbench/internal/model"
	"tbench.dev/pkg/tbench/pkg"
)

// episodeStatus values recorded in the audit store.
const (
	statusFullPass        = "full_pass"
	statusBudgetExhausted = "budget_exhausted"
	statusAborted         = "aborted"
)

// errEpisodeNotSolved makes `tbench run` exit non-zero when the episode ends
// without a confirmed full-suite pass.
var errEpisodeNotSolved = errors.New("episode finished without a full-suite pass")

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one episode over the workspace",
		Long: `Run resets the environment, reads agent actions as JSON lines from stdin
(or from a script file) and applies them one per step until the step budget
is exhausted or the full suite passes. Each step result is written as one
JSON line to stdout; with --interactive a live monitor is shown instead.

The command exits 0 only when the episode ended on a confirmed full-suite
pass.`,
		RunE: runEpisode,
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().String(scriptFlagName, "", "read actions from a JSONL script file instead of stdin")
	cmd.Flags().Bool(interactiveFlagName, false, "show a live episode monitor instead of JSONL output")
	cmd.Flags().Int(maxStepsFlagName, 0, "override the manifest step budget")
	bindFlagToConfig(cmd.Flags().Lookup(maxStepsFlagName), maxStepsConfigKey)

	cmd.Flags().String(journalFlagName, viper.GetString(journalFlagName), "step journal path (JSONL)")
	bindFlagToConfig(cmd.Flags().Lookup(journalFlagName), journalFlagName)
}

func runEpisode(cmd *cobra.Command, _ []string) error {
	configureLogger("", viper.GetBool(logVerboseKey))

	h, err := buildHarness()
	if err != nil {
		return err
	}

	maxSteps := h.manifest.Run.MaxSteps
	if override := viper.GetInt(maxStepsConfigKey); override > 0 {
		maxSteps = override
	}

	ep := domain.NewEpisodeController(h.workspace, h.runner, h.validator, h.orchestrator, h.engine,
		domain.EpisodeConfig{
			MaxSteps:  maxSteps,
			FullEvery: h.manifest.Run.FullEvery,
		})

	actions, closeActions, err := openActionSource(cmd)
	if err != nil {
		return err
	}
	defer closeActions()

	journal, err := pkg.NewJournal[model.StepResult](viper.GetString(journalFlagName))
	if err != nil {
		return err
	}

	defer func() {
		if err := journal.Close(); err != nil {
			slog.Error("failed to close step journal", "error", err)
		}
	}()

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close episode store", "error", err)
		}
	}()

	interactive, err := cmd.Flags().GetBool(interactiveFlagName)
	if err != nil {
		return err
	}

	ui := controller.NewUI(cmd, interactive)
	emit := newStepEmitter(cmd, ui, interactive)

	if err := ui.Start(cmd.Context(),
		controller.WithWorkspace(string(h.workspace.Root())),
		controller.WithMaxSteps(maxSteps)); err != nil {
		return err
	}
	defer ui.Close(cmd.Context())

	solved, err := driveEpisode(cmd.Context(), ep, string(h.workspace.Root()), actions, journal, store, emit)

	// Keep stdout machine-pure in JSONL mode; the closing summary is a
	// human surface.
	if interactive {
		if summaryErr := ui.DisplayEpisodeSummary(cmd.Context(), ep.State()); summaryErr != nil {
			slog.Error("failed to display episode summary", "error", summaryErr)
		}

		ui.Wait(cmd.Context())
	}

	if err != nil {
		return err
	}

	if !solved {
		return errEpisodeNotSolved
	}

	return nil
}

// driveEpisode runs reset plus the action loop, persisting every step. It
// returns whether the episode ended on a confirmed full-suite pass.
func driveEpisode(
	ctx context.Context,
	ep *domain.EpisodeController,
	workspace string,
	actions *json.Decoder,
	journal pkg.Journal[model.StepResult],
	store *adapter.EpisodeStore,
	emit func(model.Action, model.StepResult) error,
) (bool, error) {
	reset, err := ep.Reset(ctx)
	if err != nil {
		return false, err
	}

	if err := store.BeginEpisode(ctx, ep.State(), workspace); err != nil {
		return false, err
	}

	if err := journal.Append(reset); err != nil {
		return false, err
	}

	solved := false
	status := statusAborted

	for {
		var action model.Action

		err := actions.Decode(&action)
		if err == io.EOF {
			break
		}

		if err != nil {
			finishEpisode(ctx, store, ep, status)
			return false, fmt.Errorf("decode action: %w", err)
		}

		result, err := ep.Step(ctx, action)
		if err != nil {
			finishEpisode(ctx, store, ep, status)
			return false, err
		}

		if err := journal.Append(result); err != nil {
			finishEpisode(ctx, store, ep, status)
			return false, err
		}

		if err := store.RecordStep(ctx, ep.State().ID, action, result); err != nil {
			slog.Error("failed to record step", "error", err)
		}

		if err := emit(action, result); err != nil {
			finishEpisode(ctx, store, ep, status)
			return false, err
		}

		if result.Done {
			summary := result.Observation.TestSummary
			if summary != nil && summary.FullPass() {
				solved = true
				status = statusFullPass
			} else {
				status = statusBudgetExhausted
			}

			break
		}
	}

	finishEpisode(ctx, store, ep, status)

	return solved, nil
}

func finishEpisode(ctx context.Context, store *adapter.EpisodeStore, ep *domain.EpisodeController, status string) {
	if err := store.FinishEpisode(ctx, ep.State(), status); err != nil {
		slog.Error("failed to finish episode record", "error", err)
	}
}

// newStepEmitter returns the per-step output sink: the live monitor when
// interactive, one JSON line per step otherwise.
func newStepEmitter(cmd *cobra.Command, ui controller.UI, interactive bool) func(model.Action, model.StepResult) error {
	if interactive {
		return func(action model.Action, result model.StepResult) error {
			return ui.DisplayStep(cmd.Context(), action, result)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())

	return func(_ model.Action, result model.StepResult) error {
		return encoder.Encode(result)
	}
}

// openActionSource returns a JSON decoder over the action stream and a
// cleanup function.
func openActionSource(cmd *cobra.Command) (*json.Decoder, func(), error) {
	script, err := cmd.Flags().GetString(scriptFlagName)
	if err != nil {
		return nil, nil, err
	}

	if script == "" {
		return json.NewDecoder(cmd.InOrStdin()), func() {}, nil
	}

	file, err := os.Open(script)
	if err != nil {
		return nil, nil, fmt.Errorf("open action script: %w", err)
	}

	return json.NewDecoder(file), func() { _ = file.Close() }, nil
}

// openStore opens the sqlite audit store when configured, a nil store (all
// methods no-op or fail soft) otherwise.
func openStore(ctx context.Context) (*adapter.EpisodeStore, error) {
	path := viper.GetString(storeFlagName)
	if path == "" {
		return nil, nil
	}

	store, err := adapter.NewEpisodeStore(path)
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

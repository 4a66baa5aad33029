package domain

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"tbench.dev/pkg/tbench/internal/adapter"
	m "tbench.dev/pkg/tbench/internal/model"
)

// ErrEpisodeDone is returned by Step once the episode reached a terminal
// state. The controller must be Reset (or discarded) to continue.
var ErrEpisodeDone = errors.New("episode is done")

// EpisodeConfig bounds one episode.
type EpisodeConfig struct {
	MaxSteps int
	// FullEvery forces a full run at least once every N mutating steps,
	// bounding staleness of the authoritative pass rate while keeping the
	// average per-step cost low.
	FullEvery int
}

// EpisodeController owns all mutable episode state and composes the
// validator, workspace, orchestrator, and reward engine into the
// reset/step state machine. One controller exclusively owns one workspace
// directory; parallel episodes require separate workspaces, never shared
// mutable state.
type EpisodeController struct {
	ws           adapter.WorkspaceFS
	runner       adapter.CommandRunner
	validator    *ActionValidator
	orchestrator TestOrchestrator
	engine       *RewardEngine
	cfg          EpisodeConfig

	state     m.EpisodeState
	sinceFull int
	done      bool
	started   bool
}

// NewEpisodeController wires the harness components together. Reset must be
// called before the first Step.
func NewEpisodeController(
	ws adapter.WorkspaceFS,
	runner adapter.CommandRunner,
	validator *ActionValidator,
	orchestrator TestOrchestrator,
	engine *RewardEngine,
	cfg EpisodeConfig,
) *EpisodeController {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 1
	}

	if cfg.FullEvery <= 0 {
		cfg.FullEvery = 1
	}

	return &EpisodeController{
		ws:           ws,
		runner:       runner,
		validator:    validator,
		orchestrator: orchestrator,
		engine:       engine,
		cfg:          cfg,
	}
}

// State returns a copy of the current episode state.
func (c *EpisodeController) State() m.EpisodeState {
	return c.state
}

// Reset starts a fresh episode: counters and the file-change log are
// cleared, one full test run establishes the baseline summary, and the
// initial observation carries reward 0.
func (c *EpisodeController) Reset(ctx context.Context) (m.StepResult, error) {
	c.state = m.EpisodeState{
		ID:           uuid.NewString(),
		MaxSteps:     c.cfg.MaxSteps,
		FilesChanged: []m.Path{},
	}
	c.sinceFull = 0
	c.done = false
	c.started = true

	outcome, err := c.orchestrator.RunFull(ctx)
	if err != nil {
		return m.StepResult{}, err
	}

	summary := outcome.Summary
	c.state.LastSummary = &summary

	slog.Info("episode reset",
		"episode", c.state.ID,
		"tests_total", summary.Total,
		"pass_rate", summary.PassRate)

	result := m.StepResult{
		Observation: m.Observation{
			ActionResult: m.ActionResult{Success: true},
			TestSummary:  &summary,
		},
		Info: c.info(summary, integrityError(outcome)),
	}

	return result, nil
}

// Step processes one action through validate → side effect → test run →
// reward. The step counter is consumed unconditionally, even when
// validation fails, so invalid actions still burn budget.
func (c *EpisodeController) Step(ctx context.Context, action m.Action) (m.StepResult, error) {
	if !c.started {
		return m.StepResult{}, errors.New("episode not started: call Reset first")
	}

	if c.done {
		return m.StepResult{}, ErrEpisodeDone
	}

	c.state.StepCount++

	if err := c.validator.Validate(action); err != nil {
		return c.failedStep(err), nil
	}

	actionResult, err := c.apply(ctx, action)
	if err != nil {
		return c.failedStep(err), nil
	}

	previous := *c.state.LastSummary

	summary, integrityErr, err := c.refresh(ctx, action, previous)
	if err != nil {
		return c.failedStep(err), nil
	}

	c.state.LastSummary = &summary

	breakdown := c.engine.Score(summary, previous, c.state.StepCount, c.state.MaxSteps)

	c.done = c.state.StepCount >= c.state.MaxSteps || summary.FullPass()
	if c.done {
		slog.Info("episode done",
			"episode", c.state.ID,
			"steps", c.state.StepCount,
			"pass_rate", summary.PassRate,
			"full_pass", summary.FullPass())
	}

	info := c.info(summary, integrityErr)

	return m.StepResult{
		Observation: m.Observation{
			ActionResult: actionResult,
			Step:         c.state.StepCount,
			Reward:       breakdown.Total,
			TestSummary:  &summary,
		},
		Reward:    breakdown.Total,
		Done:      c.done,
		Info:      info,
		Breakdown: &breakdown,
	}, nil
}

// apply performs the action's side effect. Validation already passed, so
// path resolution failures here are unexpected and reported as step errors.
func (c *EpisodeController) apply(ctx context.Context, action m.Action) (m.ActionResult, error) {
	switch action.Type {
	case m.ActionEdit:
		if err := c.ws.WriteFile(action.File, []byte(action.Content), 0o600); err != nil {
			return m.ActionResult{}, err
		}

		c.state.FilesChanged = append(c.state.FilesChanged, action.File)

		return m.ActionResult{Success: true}, nil

	case m.ActionRead:
		content, err := c.ws.ReadFile(action.File)
		if err != nil {
			return m.ActionResult{}, err
		}

		return m.ActionResult{Success: true, Output: string(content)}, nil

	case m.ActionRunCommand:
		out, err := c.runner.Run(ctx, TokenizeCommand(action.Command), string(c.ws.Root()))
		if err != nil {
			return m.ActionResult{}, err
		}

		return m.ActionResult{Success: true, Output: out.Combined}, nil
	}

	return m.ActionResult{}, ErrInvalidAction
}

// refresh reruns tests after a mutating action, choosing between a
// targeted run and a throttled full run. Non-mutating actions reuse the
// last known summary.
func (c *EpisodeController) refresh(ctx context.Context, action m.Action, previous m.TestSummary) (m.TestSummary, string, error) {
	if !action.Mutating() {
		return previous, "", nil
	}

	c.state.MutatingStepCount++
	c.sinceFull++

	// Full runs are forced every FullEvery mutating steps; RunCommand has
	// no file to map tests from, so it always refreshes with a full run.
	fullDue := c.sinceFull >= c.cfg.FullEvery || action.Type == m.ActionRunCommand

	if !fullDue {
		outcome, err := c.orchestrator.RunTargeted(ctx, action.File)
		if err != nil {
			return m.TestSummary{}, "", err
		}

		// A file with no mapped tests cannot be scored by a targeted run.
		if outcome.Summary.Total > 0 {
			return outcome.Summary, "", nil
		}
	}

	outcome, err := c.orchestrator.RunFull(ctx)
	if err != nil {
		return m.TestSummary{}, "", err
	}

	c.sinceFull = 0

	return outcome.Summary, integrityError(outcome), nil
}

// failedStep builds the result for a consumed-but-failed step: reward 0,
// previous summary retained, budget still burned.
func (c *EpisodeController) failedStep(err error) m.StepResult {
	c.done = c.state.StepCount >= c.state.MaxSteps

	summary := *c.state.LastSummary
	info := c.info(summary, err.Error())

	slog.Debug("step failed", "episode", c.state.ID, "step", c.state.StepCount, "error", err)

	return m.StepResult{
		Observation: m.Observation{
			ActionResult: m.ActionResult{Success: false, Error: err.Error()},
			Step:         c.state.StepCount,
			TestSummary:  &summary,
		},
		Done: c.done,
		Info: info,
	}
}

func (c *EpisodeController) info(summary m.TestSummary, errMsg string) m.StepInfo {
	files := make([]m.Path, len(c.state.FilesChanged))
	copy(files, c.state.FilesChanged)

	return m.StepInfo{
		Step:         c.state.StepCount,
		MaxSteps:     c.state.MaxSteps,
		FilesChanged: files,
		PassRate:     summary.PassRate,
		TestsTotal:   summary.Total,
		TestsFailed:  summary.Failed,
		TargetedRun:  summary.Targeted,
		Error:        errMsg,
	}
}

func integrityError(outcome RunOutcome) string {
	if outcome.Integrity.Clean() {
		return ""
	}

	return "integrity violation: fixture inventory failed verification"
}

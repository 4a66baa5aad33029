package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/manifest"
	m "tbench.dev/pkg/tbench/internal/model"
)

// RunOutcome is the result of one orchestrated test execution.
type RunOutcome struct {
	Summary m.TestSummary
	// Integrity holds the findings that zeroed the summary; it is the zero
	// value when the fixture inventory was clean (or not consulted, for
	// targeted runs).
	Integrity m.IntegrityReport
	// ExitCode mirrors the runner contract: 0 means the suite fully
	// passed, 1 means anything else, including an integrity violation.
	ExitCode int
}

// TestOrchestrator decides between full and targeted test execution,
// invokes the runner, and parses its output into a TestSummary.
type TestOrchestrator interface {
	// RunFull verifies fixture integrity and then executes the entire
	// suite. Any integrity finding short-circuits to a zeroed, untrusted
	// summary with a failing exit code: partial results are never reported
	// for a tampered fixture set.
	RunFull(ctx context.Context) (RunOutcome, error)

	// RunTargeted executes only the tests statically associated with the
	// edited file. When the mapping yields no tests the outcome carries a
	// zeroed targeted summary and the caller must fall back to RunFull.
	RunTargeted(ctx context.Context, file m.Path) (RunOutcome, error)

	// TargetsFor returns the test identifiers mapped to a file by path
	// prefix, deduplicated and sorted.
	TargetsFor(file m.Path) []string
}

type orchestrator struct {
	ws       adapter.WorkspaceFS
	runner   adapter.CommandRunner
	verifier *IntegrityVerifier
	cfg      manifest.Runner
	targets  map[string][]string
}

// NewTestOrchestrator constructs a TestOrchestrator backed by the provided
// workspace, command runner, and integrity verifier.
func NewTestOrchestrator(
	ws adapter.WorkspaceFS,
	runner adapter.CommandRunner,
	verifier *IntegrityVerifier,
	cfg manifest.Runner,
	targets map[string][]string,
) TestOrchestrator {
	return &orchestrator{
		ws:       ws,
		runner:   runner,
		verifier: verifier,
		cfg:      cfg,
		targets:  targets,
	}
}

func (o *orchestrator) RunFull(ctx context.Context) (RunOutcome, error) {
	report, err := o.verifier.Verify(ctx)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("integrity verification: %w", err)
	}

	if !report.Clean() {
		return RunOutcome{
			Summary:   m.NewTestSummary(0, 0, 0, false, ""),
			Integrity: report,
			ExitCode:  1,
		}, nil
	}

	out, err := o.runner.Run(ctx, o.cfg.Full, string(o.ws.Root()))
	if err != nil {
		return RunOutcome{}, err
	}

	summary := ParseSummary(out.Combined, false)
	slog.Debug("full test run",
		"total", summary.Total, "passed", summary.Passed, "exit_code", out.ExitCode)

	return RunOutcome{Summary: summary, ExitCode: out.ExitCode}, nil
}

func (o *orchestrator) RunTargeted(ctx context.Context, file m.Path) (RunOutcome, error) {
	tests := o.TargetsFor(file)
	if len(tests) == 0 {
		return RunOutcome{
			Summary:  m.NewTestSummary(0, 0, 0, true, ""),
			ExitCode: 1,
		}, nil
	}

	base := o.cfg.Targeted
	if len(base) == 0 {
		base = o.cfg.Full
	}

	args := make([]string, 0, len(base)+len(tests))
	args = append(args, base...)
	args = append(args, tests...)

	out, err := o.runner.Run(ctx, args, string(o.ws.Root()))
	if err != nil {
		return RunOutcome{}, err
	}

	summary := ParseSummary(out.Combined, true)
	slog.Debug("targeted test run",
		"file", file, "tests", len(tests), "passed", summary.Passed, "exit_code", out.ExitCode)

	return RunOutcome{Summary: summary, ExitCode: out.ExitCode}, nil
}

func (o *orchestrator) TargetsFor(file m.Path) []string {
	normalized := strings.TrimPrefix(strings.ReplaceAll(string(file), "\\", "/"), "./")
	seen := make(map[string]struct{})

	var tests []string

	for prefix, ids := range o.targets {
		if !strings.HasPrefix(normalized, strings.TrimPrefix(prefix, "./")) {
			continue
		}

		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			tests = append(tests, id)
		}
	}

	sort.Strings(tests)

	return tests
}

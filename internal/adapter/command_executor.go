package adapter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Errors distinguishing the only two executor failures callers must handle.
// A non-zero exit from the child process is not an error; callers interpret
// the captured output instead.
var (
	ErrLaunchFailure = errors.New("command launch failed")
	ErrTimeout       = errors.New("command timed out")
)

// CommandOutput is the captured result of one child process run.
type CommandOutput struct {
	// Combined is stdout followed by stderr, regardless of exit code.
	Combined string
	ExitCode int
	Duration time.Duration
}

// CommandRunner abstracts external command execution so the domain layer
// can be tested without spawning processes.
type CommandRunner interface {
	// Run executes the tokenized command to completion in cwd, waiting up
	// to the configured timeout. It never raises on non-zero exit; it
	// returns ErrLaunchFailure or ErrTimeout only.
	Run(ctx context.Context, args []string, cwd string) (CommandOutput, error)
}

// LocalCommandRunner runs commands with os/exec under a hard timeout.
type LocalCommandRunner struct {
	timeout time.Duration
}

// NewLocalCommandRunner constructs a LocalCommandRunner. A non-positive
// timeout falls back to 30 seconds.
func NewLocalCommandRunner(timeout time.Duration) *LocalCommandRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LocalCommandRunner{timeout: timeout}
}

// Run executes args[0] with the remaining tokens as arguments. No shell is
// involved; the token list is passed to the kernel verbatim.
func (r *LocalCommandRunner) Run(ctx context.Context, args []string, cwd string) (CommandOutput, error) {
	if len(args) == 0 {
		return CommandOutput{}, ErrLaunchFailure
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	out := CommandOutput{
		Combined: stdout.String() + stderr.String(),
		Duration: time.Since(start),
	}

	if runCtx.Err() != nil {
		return out, ErrTimeout
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}

		return out, errors.Join(ErrLaunchFailure, err)
	}

	return out, nil
}

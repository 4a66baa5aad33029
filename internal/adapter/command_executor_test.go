package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesCombinedOutput(t *testing.T) {
	runner := NewLocalCommandRunner(5 * time.Second)

	out, err := runner.Run(context.Background(), []string{"sh", "-c", "echo out; echo err 1>&2"}, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, out.Combined, "out")
	assert.Contains(t, out.Combined, "err")
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	runner := NewLocalCommandRunner(5 * time.Second)

	out, err := runner.Run(context.Background(), []string{"sh", "-c", "echo failing; exit 3"}, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, out.Combined, "failing")
}

func TestRun_LaunchFailure(t *testing.T) {
	runner := NewLocalCommandRunner(5 * time.Second)

	_, err := runner.Run(context.Background(), []string{"definitely-not-a-real-binary"}, t.TempDir())
	require.ErrorIs(t, err, ErrLaunchFailure)
}

func TestRun_EmptyArgs(t *testing.T) {
	runner := NewLocalCommandRunner(5 * time.Second)

	_, err := runner.Run(context.Background(), nil, t.TempDir())
	require.ErrorIs(t, err, ErrLaunchFailure)
}

func TestRun_Timeout(t *testing.T) {
	runner := NewLocalCommandRunner(100 * time.Millisecond)

	_, err := runner.Run(context.Background(), []string{"sleep", "2"}, t.TempDir())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRun_RunsInWorkingDirectory(t *testing.T) {
	runner := NewLocalCommandRunner(5 * time.Second)
	dir := t.TempDir()

	out, err := runner.Run(context.Background(), []string{"pwd"}, dir)
	require.NoError(t, err)
	assert.Contains(t, out.Combined, dir)
}

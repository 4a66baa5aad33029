package domain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/manifest"
	m "tbench.dev/pkg/tbench/internal/model"
)

func newIntegrityWorkspace(t *testing.T) *adapter.LocalWorkspaceFS {
	t.Helper()

	ws, err := adapter.NewLocalWorkspaceFS(t.TempDir())
	require.NoError(t, err)

	return ws
}

func TestVerify_Clean(t *testing.T) {
	ws := newIntegrityWorkspace(t)
	require.NoError(t, ws.WriteFile("tests/run.sh", []byte(strings.Repeat("x", 200)), 0o600))

	v := NewIntegrityVerifier(ws, manifest.Integrity{Files: []string{"tests/run.sh"}})

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 0, report.FindingCount())
}

func TestVerify_MissingFile(t *testing.T) {
	ws := newIntegrityWorkspace(t)

	v := NewIntegrityVerifier(ws, manifest.Integrity{Files: []string{"tests/run.sh"}})

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []m.Path{"tests/run.sh"}, report.MissingFiles)
	assert.False(t, report.Clean())
}

func TestVerify_UndersizedFile(t *testing.T) {
	ws := newIntegrityWorkspace(t)
	require.NoError(t, ws.WriteFile("tests/run.sh", []byte("tiny"), 0o600))

	v := NewIntegrityVerifier(ws, manifest.Integrity{Files: []string{"tests/run.sh"}, MinBytes: 100})

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []m.Path{"tests/run.sh"}, report.UndersizedFiles)
}

func TestVerify_DefaultMinBytes(t *testing.T) {
	ws := newIntegrityWorkspace(t)
	require.NoError(t, ws.WriteFile("tests/run.sh", []byte(strings.Repeat("x", 99)), 0o600))

	v := NewIntegrityVerifier(ws, manifest.Integrity{Files: []string{"tests/run.sh"}})

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.UndersizedFiles, 1)
}

func TestVerify_ChecksumPrefix(t *testing.T) {
	ws := newIntegrityWorkspace(t)
	require.NoError(t, ws.WriteFile("tests/run.sh", []byte("hello"), 0o600))

	// sha256("hello") starts with 2cf24dba.
	v := NewIntegrityVerifier(ws, manifest.Integrity{
		MinBytes: 1,
		Critical: map[string]string{"tests/run.sh": "2cf24dba"},
	})

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())

	v = NewIntegrityVerifier(ws, manifest.Integrity{
		MinBytes: 1,
		Critical: map[string]string{"tests/run.sh": "deadbeef"},
	})

	report, err = v.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []m.Path{"tests/run.sh"}, report.ChecksumMismatches)
}

func TestVerify_ChecksumOfMissingFileIsMismatch(t *testing.T) {
	ws := newIntegrityWorkspace(t)

	v := NewIntegrityVerifier(ws, manifest.Integrity{
		Critical: map[string]string{"gone.sh": "2cf24dba"},
	})

	report, err := v.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []m.Path{"gone.sh"}, report.ChecksumMismatches)
}

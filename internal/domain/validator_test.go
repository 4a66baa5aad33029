package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/manifest"
	m "tbench.dev/pkg/tbench/internal/model"
)

func newValidator(t *testing.T, allowlist []string, protected manifest.Protected) *ActionValidator {
	t.Helper()

	ws, err := adapter.NewLocalWorkspaceFS(t.TempDir())
	require.NoError(t, err)

	predicate, err := NewProtectedPredicate(protected)
	require.NoError(t, err)

	return NewActionValidator(ws, allowlist, predicate)
}

func TestValidate_Edit(t *testing.T) {
	v := newValidator(t, nil, manifest.Protected{Dirs: []string{"tests"}, Suffixes: []string{".lock"}})

	require.NoError(t, v.Validate(m.Action{Type: m.ActionEdit, File: "calc.py", Content: "x"}))

	err := v.Validate(m.Action{Type: m.ActionEdit, File: "tests/test_calc.py"})
	require.ErrorIs(t, err, ErrInvalidAction)

	err = v.Validate(m.Action{Type: m.ActionEdit, File: "deps.lock"})
	require.ErrorIs(t, err, ErrInvalidAction)

	err = v.Validate(m.Action{Type: m.ActionEdit, File: "../outside.py"})
	require.ErrorIs(t, err, ErrInvalidAction)
	require.ErrorIs(t, err, adapter.ErrPathEscape)
}

func TestValidate_EditThroughSymlinkRejected(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tests"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tests", "test_calc.py"), []byte("assert True\n"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(root, "tests"), filepath.Join(root, "lnk")))

	ws, err := adapter.NewLocalWorkspaceFS(root)
	require.NoError(t, err)

	predicate, err := NewProtectedPredicate(manifest.Protected{Dirs: []string{"tests"}})
	require.NoError(t, err)

	v := NewActionValidator(ws, nil, predicate)

	// The symlink aliases the protected directory; the edit must fail on
	// the resolved path even though the raw path is unprotected.
	err = v.Validate(m.Action{Type: m.ActionEdit, File: "lnk/test_calc.py"})
	require.ErrorIs(t, err, ErrInvalidAction)

	// Reads through the same alias stay allowed.
	require.NoError(t, v.Validate(m.Action{Type: m.ActionRead, File: "lnk/test_calc.py"}))
}

func TestValidate_Read(t *testing.T) {
	v := newValidator(t, nil, manifest.Protected{Dirs: []string{"tests"}})

	// Reads are allowed even on protected paths.
	require.NoError(t, v.Validate(m.Action{Type: m.ActionRead, File: "tests/test_calc.py"}))

	err := v.Validate(m.Action{Type: m.ActionRead, File: "/etc/passwd"})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestValidate_RunCommand(t *testing.T) {
	v := newValidator(t, []string{"ls", "cat"}, manifest.Protected{})

	require.NoError(t, v.Validate(m.Action{Type: m.ActionRunCommand, Command: "ls -la src"}))

	err := v.Validate(m.Action{Type: m.ActionRunCommand, Command: "rm -rf /"})
	require.ErrorIs(t, err, ErrInvalidAction)

	err = v.Validate(m.Action{Type: m.ActionRunCommand, Command: "   "})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestValidate_UnknownActionType(t *testing.T) {
	v := newValidator(t, nil, manifest.Protected{})

	err := v.Validate(m.Action{Type: "delete", File: "calc.py"})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestTokenizeCommand(t *testing.T) {
	assert.Equal(t, []string{"ls", "-la", "src"}, TokenizeCommand("  ls   -la  src "))
	assert.Empty(t, TokenizeCommand(""))

	// No shell interpretation: operators stay literal tokens.
	assert.Equal(t, []string{"ls", "&&", "rm"}, TokenizeCommand("ls && rm"))
}

func TestProtectedPredicate_Rules(t *testing.T) {
	predicate, err := NewProtectedPredicate(manifest.Protected{
		Prefixes: []string{"ci/"},
		Dirs:     []string{"tests"},
		Suffixes: []string{".lock"},
	})
	require.NoError(t, err)

	assert.True(t, predicate("ci/pipeline.yaml"))
	assert.True(t, predicate("tests/test_calc.py"))
	assert.True(t, predicate("pkg/tests/helper.py"))
	assert.True(t, predicate("./tests/test_calc.py"))
	assert.True(t, predicate("poetry.lock"))

	assert.False(t, predicate("calc.py"))
	assert.False(t, predicate("testsuite/file.py"))
}

func TestProtectedPredicate_Expression(t *testing.T) {
	predicate, err := NewProtectedPredicate(manifest.Protected{
		Expression: `path.startsWith("generated/") || path.endsWith(".pb.go")`,
	})
	require.NoError(t, err)

	assert.True(t, predicate("generated/api.go"))
	assert.True(t, predicate("internal/api.pb.go"))
	assert.False(t, predicate("internal/api.go"))
}

func TestProtectedPredicate_BadExpression(t *testing.T) {
	_, err := NewProtectedPredicate(manifest.Protected{Expression: "path.nonsense("})
	require.Error(t, err)
}

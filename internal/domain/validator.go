// Package domain implements the harness mechanics: action validation, test
// orchestration, fixture integrity verification, reward scoring, and the
// episode state machine.
package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/manifest"
	m "tbench.dev/pkg/tbench/internal/model"
)

// ErrInvalidAction is returned for any action rejected before side effects:
// unknown type, unsafe path, protected path, or disallowed command.
var ErrInvalidAction = errors.New("invalid action")

// ProtectedPredicate reports whether a workspace-relative path is protected
// from edits.
type ProtectedPredicate func(path m.Path) bool

// ActionValidator rejects malformed or unsafe actions before any side
// effect occurs. It is a pure check; validation never mutates anything.
type ActionValidator struct {
	ws        adapter.WorkspaceFS
	allowlist map[string]struct{}
	protected ProtectedPredicate
}

// NewActionValidator constructs a validator. The allowlist and protected
// predicate are deployment configuration; neither has a safe default.
func NewActionValidator(ws adapter.WorkspaceFS, allowlist []string, protected ProtectedPredicate) *ActionValidator {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = struct{}{}
	}

	if protected == nil {
		protected = func(m.Path) bool { return false }
	}

	return &ActionValidator{
		ws:        ws,
		allowlist: allowed,
		protected: protected,
	}
}

// Validate checks one action. A nil return means the action is safe to apply.
func (v *ActionValidator) Validate(action m.Action) error {
	switch action.Type {
	case m.ActionEdit:
		resolved, err := v.ws.Resolve(action.File)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}

		if v.protected(action.File) {
			return fmt.Errorf("%w: %q is a protected path", ErrInvalidAction, action.File)
		}

		// An in-workspace symlink can alias a protected file under an
		// unprotected name, so the predicate also runs on the resolved
		// root-relative path.
		rel, err := filepath.Rel(string(v.ws.Root()), string(resolved))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}

		if v.protected(m.Path(filepath.ToSlash(rel))) {
			return fmt.Errorf("%w: %q resolves to a protected path", ErrInvalidAction, action.File)
		}

		return nil

	case m.ActionRead:
		if _, err := v.ws.Resolve(action.File); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}

		return nil

	case m.ActionRunCommand:
		return v.validateCommand(action.Command)

	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, action.Type)
	}
}

// TokenizeCommand splits a raw command string on whitespace. This is the
// only interpretation the harness ever applies: no variable expansion, no
// globbing, no chaining operators.
func TokenizeCommand(command string) []string {
	return strings.Fields(command)
}

func (v *ActionValidator) validateCommand(command string) error {
	tokens := TokenizeCommand(command)
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty command", ErrInvalidAction)
	}

	if _, ok := v.allowlist[tokens[0]]; !ok {
		return fmt.Errorf("%w: command %q is not allowlisted", ErrInvalidAction, tokens[0])
	}

	return nil
}

// NewProtectedPredicate compiles the manifest's protected-path rules into a
// single predicate. Prefix, directory, and suffix rules are plain string
// checks; the optional CEL expression is compiled once and evaluated with a
// `path` string variable.
func NewProtectedPredicate(cfg manifest.Protected) (ProtectedPredicate, error) {
	var program cel.Program

	if cfg.Expression != "" {
		env, err := cel.NewEnv(cel.Variable("path", cel.StringType))
		if err != nil {
			return nil, fmt.Errorf("protected expression environment: %w", err)
		}

		ast, issues := env.Compile(cfg.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("protected expression: %w", issues.Err())
		}

		program, err = env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("protected expression program: %w", err)
		}
	}

	dirs := make([]string, 0, len(cfg.Dirs))
	for _, dir := range cfg.Dirs {
		dirs = append(dirs, strings.Trim(dir, "/"))
	}

	return func(path m.Path) bool {
		normalized := strings.TrimPrefix(strings.ReplaceAll(string(path), "\\", "/"), "./")

		for _, prefix := range cfg.Prefixes {
			if strings.HasPrefix(normalized, prefix) {
				return true
			}
		}

		for _, dir := range dirs {
			if dir == "" {
				continue
			}

			if normalized == dir || strings.HasPrefix(normalized, dir+"/") || strings.Contains(normalized, "/"+dir+"/") {
				return true
			}
		}

		for _, suffix := range cfg.Suffixes {
			if strings.HasSuffix(normalized, suffix) {
				return true
			}
		}

		if program != nil {
			out, _, err := program.Eval(map[string]interface{}{"path": normalized})
			if err == nil && out.Type() == types.BoolType {
				if protected, ok := out.Value().(bool); ok && protected {
					return true
				}
			}
		}

		return false
	}, nil
}

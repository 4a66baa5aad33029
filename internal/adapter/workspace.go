// Package adapter contains infrastructure adapters for the tbench harness.
package adapter

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	m "tbench.dev/pkg/tbench/internal/model"
)

// ErrPathEscape is returned when a path would resolve outside the
// workspace root.
var ErrPathEscape = errors.New("path escapes workspace")

// WorkspaceFS abstracts scoped filesystem access to one episode's project
// directory. It intentionally hides direct `os` access so the domain layer
// can be tested without touching the disk, and so every read or write goes
// through the same path validation.
type WorkspaceFS interface {
	// Root returns the absolute, symlink-resolved workspace root.
	Root() m.Path

	// Resolve validates a workspace-relative path and returns its absolute
	// form. It fails with ErrPathEscape for empty paths, absolute paths,
	// parent-directory segments, and any path whose resolved form is not a
	// descendant of the root.
	Resolve(rel m.Path) (m.Path, error)

	// ReadFile loads a validated workspace file.
	ReadFile(rel m.Path) ([]byte, error)

	// WriteFile writes content to a validated workspace path, creating
	// intermediate directories as needed.
	WriteFile(rel m.Path, content []byte, perm os.FileMode) error

	// FileSize returns the size in bytes of a workspace file.
	FileSize(rel m.Path) (int64, error)

	// HashFile returns a stable fingerprint (SHA-256 hex) for a workspace file.
	HashFile(rel m.Path) (string, error)
}

// LocalWorkspaceFS is the concrete implementation backed by the local
// filesystem. One value owns one workspace directory for one episode.
type LocalWorkspaceFS struct {
	root string
}

// NewLocalWorkspaceFS constructs a LocalWorkspaceFS rooted at dir. The root
// must exist; it is resolved through symlinks once so later descendant
// checks compare real paths.
func NewLocalWorkspaceFS(dir string) (*LocalWorkspaceFS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q: %w", dir, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q: %w", dir, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q: %w", dir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %q is not a directory", dir)
	}

	return &LocalWorkspaceFS{root: resolved}, nil
}

// Root returns the absolute workspace root.
func (w *LocalWorkspaceFS) Root() m.Path {
	return m.Path(w.root)
}

// Resolve validates rel and returns the absolute path inside the root.
func (w *LocalWorkspaceFS) Resolve(rel m.Path) (m.Path, error) {
	raw := string(rel)
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathEscape)
	}

	if filepath.IsAbs(raw) {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathEscape, raw)
	}

	// Parent segments are rejected on the raw path, before cleaning, so
	// even self-cancelling forms like a/../b never pass.
	for _, segment := range strings.Split(filepath.ToSlash(raw), "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: parent segment in %q", ErrPathEscape, raw)
		}
	}

	cleaned := filepath.Clean(filepath.FromSlash(raw))

	candidate := filepath.Join(w.root, cleaned)

	// Resolve through symlinks before the descendant check. The deepest
	// existing ancestor is resolved so paths about to be created are still
	// validated against the real directory tree.
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrPathEscape, raw, err)
	}

	if resolved != w.root && !strings.HasPrefix(resolved, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves outside the workspace", ErrPathEscape, raw)
	}

	return m.Path(resolved), nil
}

// resolveExisting evaluates symlinks for the deepest existing ancestor of
// path and re-joins the non-existing remainder.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path

	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}

		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}

		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// ReadFile loads the content of a validated workspace file.
func (w *LocalWorkspaceFS) ReadFile(rel m.Path) ([]byte, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(string(abs))
}

// WriteFile writes content to a validated workspace path, creating parent
// directories as needed.
func (w *LocalWorkspaceFS) WriteFile(rel m.Path, content []byte, perm os.FileMode) error {
	abs, err := w.Resolve(rel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(string(abs)), 0o750); err != nil {
		return fmt.Errorf("create parent directories for %q: %w", rel, err)
	}

	return os.WriteFile(string(abs), content, perm)
}

// FileSize returns the size of a workspace file in bytes.
func (w *LocalWorkspaceFS) FileSize(rel m.Path) (int64, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(string(abs))
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// HashFile returns the SHA-256 hash of a workspace file.
func (w *LocalWorkspaceFS) HashFile(rel m.Path) (string, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}

	f, err := os.Open(string(abs))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

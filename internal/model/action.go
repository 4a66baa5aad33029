// Package model defines the data structures for the repair harness.
package model

// Path represents a file system path, relative to a workspace root unless
// stated otherwise.
type Path string

// ActionType represents the kind of operation an agent can request.
type ActionType string

const (
	// ActionEdit overwrites a workspace file with new content.
	ActionEdit ActionType = "edit"
	// ActionRead returns the content of a workspace file.
	ActionRead ActionType = "read"
	// ActionRunCommand executes an allowlisted command inside the workspace.
	ActionRunCommand ActionType = "run_command"
)

// Action is a single instruction submitted to the episode controller.
// It is constructed by the caller, consumed once, and never mutated.
type Action struct {
	Type    ActionType `json:"type"`
	File    Path       `json:"file,omitempty"`
	Content string     `json:"content,omitempty"`
	Command string     `json:"command,omitempty"`
}

// Mutating reports whether the action can change test outcomes.
func (a Action) Mutating() bool {
	return a.Type == ActionEdit || a.Type == ActionRunCommand
}

// ActionResult captures the outcome of applying an action.
type ActionResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

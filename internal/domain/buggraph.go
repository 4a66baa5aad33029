package domain

import (
	"fmt"

	m "tbench.dev/pkg/tbench/internal/model"
)

// ValidateBugGraph checks that the manifest's bug records form a DAG:
// every prerequisite refers to a declared bug, ids are unique, and no
// dependency cycle exists. The graph documents which tests become fixable
// when; the runtime reward path never consults it.
func ValidateBugGraph(bugs []m.BugRecord) error {
	byID := make(map[string]m.BugRecord, len(bugs))

	for _, bug := range bugs {
		if bug.ID == "" {
			return fmt.Errorf("bug graph: record with empty id")
		}

		if _, ok := byID[bug.ID]; ok {
			return fmt.Errorf("bug graph: duplicate bug id %q", bug.ID)
		}

		byID[bug.ID] = bug
	}

	for _, bug := range bugs {
		for _, prereq := range bug.PrerequisiteBugIDs {
			if _, ok := byID[prereq]; !ok {
				return fmt.Errorf("bug graph: %q requires unknown bug %q", bug.ID, prereq)
			}
		}
	}

	// Depth-first cycle detection with three-color marking.
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(bugs))

	var visit func(id string) error

	visit = func(id string) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("bug graph: dependency cycle through %q", id)
		case black:
			return nil
		}

		color[id] = gray

		for _, prereq := range byID[id].PrerequisiteBugIDs {
			if err := visit(prereq); err != nil {
				return err
			}
		}

		color[id] = black

		return nil
	}

	for _, bug := range bugs {
		if err := visit(bug.ID); err != nil {
			return err
		}
	}

	return nil
}

// FixOrder returns a topological order of bug ids: every bug appears after
// all of its prerequisites. Useful for fixture documentation tooling.
func FixOrder(bugs []m.BugRecord) ([]string, error) {
	if err := ValidateBugGraph(bugs); err != nil {
		return nil, err
	}

	byID := make(map[string]m.BugRecord, len(bugs))
	for _, bug := range bugs {
		byID[bug.ID] = bug
	}

	visited := make(map[string]bool, len(bugs))
	order := make([]string, 0, len(bugs))

	var visit func(id string)

	visit = func(id string) {
		if visited[id] {
			return
		}

		visited[id] = true

		for _, prereq := range byID[id].PrerequisiteBugIDs {
			visit(prereq)
		}

		order = append(order, id)
	}

	for _, bug := range bugs {
		visit(bug.ID)
	}

	return order, nil
}

package model

// BugRecord is fixture metadata describing one planted defect. The records
// form a DAG through PrerequisiteBugIDs: a bug's tests are only reliably
// fixable once all prerequisite bugs are fixed. The harness uses this for
// documentation and manifest validation only; the reward path never reads it.
type BugRecord struct {
	ID                 string   `yaml:"id" json:"id"`
	DependentTestNames []string `yaml:"dependent_tests" json:"dependent_tests,omitempty"`
	PrerequisiteBugIDs []string `yaml:"prerequisites" json:"prerequisites,omitempty"`
}

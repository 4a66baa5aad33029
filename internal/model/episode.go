package model

// EpisodeState is the mutable state of one episode. It is owned exclusively
// by a single controller instance: created on reset, mutated only by step,
// and discarded on the terminal transition.
type EpisodeState struct {
	ID                string       `json:"id"`
	StepCount         int          `json:"step_count"`
	MutatingStepCount int          `json:"mutating_step_count"`
	MaxSteps          int          `json:"max_steps"`
	FilesChanged      []Path       `json:"files_changed"`
	LastSummary       *TestSummary `json:"last_summary,omitempty"`
}

// Observation is the per-step view handed back to the agent.
type Observation struct {
	ActionResult ActionResult `json:"action_result"`
	Step         int          `json:"step"`
	Reward       float64      `json:"reward"`
	TestSummary  *TestSummary `json:"test_summary,omitempty"`
}

// StepInfo carries auditing details alongside the observation.
type StepInfo struct {
	Step         int     `json:"step"`
	MaxSteps     int     `json:"max_steps"`
	FilesChanged []Path  `json:"files_changed"`
	PassRate     float64 `json:"pass_rate"`
	TestsTotal   uint    `json:"tests_total"`
	TestsFailed  uint    `json:"tests_failed"`
	TargetedRun  bool    `json:"targeted_run"`
	Error        string  `json:"error,omitempty"`
}

// StepResult is the full outcome of one reset or step call.
type StepResult struct {
	Observation Observation      `json:"observation"`
	Reward      float64          `json:"reward"`
	Done        bool             `json:"done"`
	Info        StepInfo         `json:"info"`
	Breakdown   *RewardBreakdown `json:"reward_breakdown,omitempty"`
}

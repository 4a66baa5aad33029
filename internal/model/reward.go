package model

// BonusComponent is a single named bonus contribution.
type BonusComponent struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RewardBreakdown decomposes the scalar reward for one step. It is derived
// state, recomputed from the current and previous summaries every step.
type RewardBreakdown struct {
	ThresholdComponent float64          `json:"threshold_component"`
	RegressionPenalty  float64          `json:"regression_penalty"`
	BonusComponents    []BonusComponent `json:"bonus_components,omitempty"`
	Total              float64          `json:"total"`
}

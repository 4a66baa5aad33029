package model

// CategoryCount holds per-category test counts reported by the runner.
type CategoryCount struct {
	Total  uint `json:"total"`
	Passed uint `json:"passed"`
}

// TestSummary is the structured result of one test run. A fresh value is
// created after every run; it is never mutated in place.
type TestSummary struct {
	Total      uint                     `json:"total"`
	Passed     uint                     `json:"passed"`
	Failed     uint                     `json:"failed"`
	PassRate   float64                  `json:"pass_rate"`
	Targeted   bool                     `json:"targeted"`
	RawOutput  string                   `json:"-"`
	Categories map[string]CategoryCount `json:"categories,omitempty"`
}

// NewTestSummary builds a summary enforcing the pass-rate derivation:
// passed/total when total > 0, otherwise 0.
func NewTestSummary(total, passed, failed uint, targeted bool, raw string) TestSummary {
	s := TestSummary{
		Total:     total,
		Passed:    passed,
		Failed:    failed,
		Targeted:  targeted,
		RawOutput: raw,
	}

	if total > 0 {
		s.PassRate = float64(passed) / float64(total)
	}

	return s
}

// FullPass reports whether the summary represents an authoritative
// full-suite pass. Targeted runs never count.
func (s TestSummary) FullPass() bool {
	return !s.Targeted && s.Total > 0 && s.PassRate >= 1.0
}

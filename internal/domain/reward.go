package domain

import (
	"sort"
	"strings"

	"tbench.dev/pkg/tbench/internal/manifest"
	m "tbench.dev/pkg/tbench/internal/model"
)

// RewardEngine maps test summaries to a scalar reward. It is deliberately
// sparse: a staircase of pass-rate thresholds rather than a smooth ramp, so
// marginal partial fixes do not farm reward. Scoring is a pure function of
// its inputs; identical summaries and configuration always produce an
// identical breakdown.
type RewardEngine struct {
	cfg manifest.Rewards
}

// NewRewardEngine constructs an engine from validated reward configuration.
func NewRewardEngine(cfg manifest.Rewards) *RewardEngine {
	return &RewardEngine{cfg: cfg}
}

// Score computes the reward breakdown for the current summary given the
// previous one. stepsUsed and maxSteps feed the efficiency bonus, which
// only applies once the overall pass rate reaches 1.0.
func (e *RewardEngine) Score(summary, previous m.TestSummary, stepsUsed, maxSteps int) m.RewardBreakdown {
	breakdown := m.RewardBreakdown{
		ThresholdComponent: e.thresholdReward(summary.PassRate),
		RegressionPenalty:  e.regressionPenalty(summary, previous),
	}

	breakdown.BonusComponents = e.bonuses(summary, stepsUsed, maxSteps)

	total := breakdown.ThresholdComponent + breakdown.RegressionPenalty
	for _, bonus := range breakdown.BonusComponents {
		total += bonus.Value
	}

	breakdown.Total = clamp(total, -1, 1)

	return breakdown
}

// thresholdReward is a table lookup, not an interpolation: the value of the
// highest threshold not exceeding the pass rate, or 0 below the lowest.
func (e *RewardEngine) thresholdReward(passRate float64) float64 {
	reward := 0.0

	for _, step := range e.cfg.Thresholds {
		if passRate >= step.PassRate {
			reward = step.Reward
		}
	}

	return reward
}

// regressionPenalty is strictly negative whenever previously passing tests
// now fail, scaled by the regressed fraction.
func (e *RewardEngine) regressionPenalty(summary, previous m.TestSummary) float64 {
	if previous.Passed <= summary.Passed {
		return 0
	}

	regressed := float64(previous.Passed - summary.Passed)
	base := float64(previous.Passed)
	if base < 1 {
		base = 1
	}

	return -e.cfg.RegressionPenaltyRate * (regressed / base)
}

func (e *RewardEngine) bonuses(summary m.TestSummary, stepsUsed, maxSteps int) []m.BonusComponent {
	var components []m.BonusComponent

	for _, bonus := range e.cfg.Bonuses.Categories {
		count, ok := lookupCategory(summary.Categories, bonus.Category)
		if !ok || count.Total == 0 || count.Passed < count.Total {
			continue
		}

		components = append(components, m.BonusComponent{
			Name:  "category:" + bonus.Category,
			Value: bonus.Weight,
		})
	}

	if chaos := e.cfg.Bonuses.Chaos; chaos != nil {
		if count, ok := lookupCategory(summary.Categories, chaos.Category); ok && count.Total > 0 {
			rate := float64(count.Passed) / float64(count.Total)
			if rate >= chaos.PassRate {
				components = append(components, m.BonusComponent{
					Name:  "chaos:" + chaos.Category,
					Value: chaos.Weight,
				})
			}
		}
	}

	if e.cfg.Bonuses.EfficiencyWeight > 0 && summary.PassRate >= 1.0 && maxSteps > 0 {
		unused := maxSteps - stepsUsed
		if unused > 0 {
			components = append(components, m.BonusComponent{
				Name:  "efficiency",
				Value: e.cfg.Bonuses.EfficiencyWeight * float64(unused) / float64(maxSteps),
			})
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Name < components[j].Name
	})

	return components
}

// lookupCategory matches a configured category against reported categories
// by exact name or name prefix.
func lookupCategory(categories map[string]m.CategoryCount, name string) (m.CategoryCount, bool) {
	if count, ok := categories[name]; ok {
		return count, true
	}

	var (
		merged m.CategoryCount
		found  bool
	)

	for reported, count := range categories {
		if strings.HasPrefix(reported, name) {
			merged.Total += count.Total
			merged.Passed += count.Passed
			found = true
		}
	}

	return merged, found
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

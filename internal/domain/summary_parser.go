package domain

import (
	"regexp"
	"strconv"

	m "tbench.dev/pkg/tbench/internal/model"
)

// The runner protocol: exactly one TB_SUMMARY line on stdout, plus optional
// TB_CATEGORY lines for per-category reward bonuses. Counts that violate
// passed+failed+errors <= total mark the whole line untrusted.
var (
	summaryPattern  = regexp.MustCompile(`(?m)^TB_SUMMARY total=(\d+) passed=(\d+) failed=(\d+) errors=(\d+)\s*$`)
	categoryPattern = regexp.MustCompile(`(?m)^TB_CATEGORY name=(\S+) total=(\d+) passed=(\d+)\s*$`)
)

// ParseSummary extracts a TestSummary from raw runner output. The reported
// failed count is the parsed failed plus errors. When no well-formed
// TB_SUMMARY line is present the summary has total = 0.
func ParseSummary(raw string, targeted bool) m.TestSummary {
	match := summaryPattern.FindStringSubmatch(raw)
	if match == nil {
		return m.NewTestSummary(0, 0, 0, targeted, raw)
	}

	total := parseUint(match[1])
	passed := parseUint(match[2])
	failed := parseUint(match[3]) + parseUint(match[4])

	if passed+failed > total {
		return m.NewTestSummary(0, 0, 0, targeted, raw)
	}

	summary := m.NewTestSummary(total, passed, failed, targeted, raw)
	summary.Categories = parseCategories(raw)

	return summary
}

func parseCategories(raw string) map[string]m.CategoryCount {
	matches := categoryPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	categories := make(map[string]m.CategoryCount, len(matches))
	for _, match := range matches {
		categories[match[1]] = m.CategoryCount{
			Total:  parseUint(match[2]),
			Passed: parseUint(match[3]),
		}
	}

	return categories
}

func parseUint(s string) uint {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}

	return uint(n)
}

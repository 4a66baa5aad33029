// Package manifest loads and validates the environment manifest: the
// per-deployment declaration of runner commands, command allowlist,
// protected paths, fixture inventory, targeted-test mapping, reward tables,
// and bug records. The manifest is loaded once at controller construction
// and treated as immutable for the episode's lifetime.
package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"tbench.dev/pkg/tbench/internal/model"
)

// Defaults applied when the manifest omits optional fields.
const (
	DefaultMinBytes       = 100
	DefaultMaxSteps       = 50
	DefaultFullEvery      = 5
	DefaultTimeoutSeconds = 120
)

// Runner declares how the external test runner is invoked. Targeted runs
// append test identifiers to the Targeted argv.
type Runner struct {
	Full           []string `yaml:"full"`
	Targeted       []string `yaml:"targeted"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Protected declares which paths an agent may never edit. No rule applies
// unless explicitly configured; there is no safe built-in default.
type Protected struct {
	Prefixes []string `yaml:"prefixes"`
	Dirs     []string `yaml:"dirs"`
	Suffixes []string `yaml:"suffixes"`
	// Expression is an optional CEL expression over a `path` string
	// variable; when it evaluates to true the path is protected.
	Expression string `yaml:"expression"`
}

// Integrity declares the expected fixture inventory.
type Integrity struct {
	Files    []string          `yaml:"files"`
	MinBytes int64             `yaml:"min_bytes"`
	Critical map[string]string `yaml:"critical"`
}

// ThresholdStep is one row of the sparse reward staircase.
type ThresholdStep struct {
	PassRate float64 `yaml:"pass_rate"`
	Reward   float64 `yaml:"reward"`
}

// CategoryBonus grants a completion bonus when every test in the named
// runner category passes.
type CategoryBonus struct {
	Category string  `yaml:"category"`
	Weight   float64 `yaml:"weight"`
}

// ChaosBonus grants a bonus once the named category's pass rate reaches
// the configured threshold.
type ChaosBonus struct {
	Category string  `yaml:"category"`
	PassRate float64 `yaml:"pass_rate"`
	Weight   float64 `yaml:"weight"`
}

// Bonuses groups the optional reward bonus components.
type Bonuses struct {
	Categories       []CategoryBonus `yaml:"categories"`
	Chaos            *ChaosBonus     `yaml:"chaos"`
	EfficiencyWeight float64         `yaml:"efficiency_weight"`
}

// Rewards is the validated reward configuration.
type Rewards struct {
	Thresholds            []ThresholdStep `yaml:"thresholds"`
	RegressionPenaltyRate float64         `yaml:"regression_penalty_rate"`
	Bonuses               Bonuses         `yaml:"bonuses"`
}

// Run bounds one episode.
type Run struct {
	MaxSteps  int `yaml:"max_steps"`
	FullEvery int `yaml:"full_every"`
}

// Manifest is the root environment declaration.
type Manifest struct {
	Version   int                 `yaml:"version"`
	Allowlist []string            `yaml:"allowlist"`
	Protected Protected           `yaml:"protected"`
	Runner    Runner              `yaml:"runner"`
	Integrity Integrity           `yaml:"integrity"`
	Targets   map[string][]string `yaml:"targets"`
	Rewards   Rewards             `yaml:"rewards"`
	Run       Run                 `yaml:"run"`
	Bugs      []model.BugRecord   `yaml:"bugs"`
}

// Load reads, schema-validates, and semantically validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return Parse(data)
}

// Parse validates and decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	mf.applyDefaults()

	if err := mf.Validate(); err != nil {
		return nil, err
	}

	return &mf, nil
}

func (m *Manifest) applyDefaults() {
	if m.Integrity.MinBytes == 0 {
		m.Integrity.MinBytes = DefaultMinBytes
	}

	if m.Run.MaxSteps == 0 {
		m.Run.MaxSteps = DefaultMaxSteps
	}

	if m.Run.FullEvery == 0 {
		m.Run.FullEvery = DefaultFullEvery
	}

	if m.Runner.TimeoutSeconds == 0 {
		m.Runner.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// Validate checks the semantic constraints the JSON schema cannot express.
func (m *Manifest) Validate() error {
	if len(m.Runner.Full) == 0 {
		return fmt.Errorf("manifest: runner.full command is required")
	}

	if len(m.Allowlist) == 0 {
		return fmt.Errorf("manifest: command allowlist must be set explicitly")
	}

	if err := validateThresholds(m.Rewards.Thresholds); err != nil {
		return err
	}

	if m.Rewards.RegressionPenaltyRate < 0 {
		return fmt.Errorf("manifest: regression_penalty_rate must be non-negative")
	}

	if chaos := m.Rewards.Bonuses.Chaos; chaos != nil {
		if chaos.Category == "" {
			return fmt.Errorf("manifest: chaos bonus requires a category")
		}

		if chaos.PassRate < 0 || chaos.PassRate > 1 {
			return fmt.Errorf("manifest: chaos bonus pass_rate must be within [0,1]")
		}
	}

	return nil
}

// validateThresholds enforces the staircase shape: at least one row,
// strictly increasing in both columns, all values within [0,1].
func validateThresholds(steps []ThresholdStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("manifest: rewards.thresholds must not be empty")
	}

	for i, step := range steps {
		if step.PassRate < 0 || step.PassRate > 1 {
			return fmt.Errorf("manifest: threshold %d pass_rate %v outside [0,1]", i, step.PassRate)
		}

		if step.Reward < 0 || step.Reward > 1 {
			return fmt.Errorf("manifest: threshold %d reward %v outside [0,1]", i, step.Reward)
		}

		if i == 0 {
			continue
		}

		if step.PassRate <= steps[i-1].PassRate || step.Reward <= steps[i-1].Reward {
			return fmt.Errorf("manifest: thresholds must be strictly increasing in both columns (row %d)", i)
		}
	}

	return nil
}

// TargetPrefixes returns the targeted-test map keys in deterministic order.
func (m *Manifest) TargetPrefixes() []string {
	prefixes := make([]string, 0, len(m.Targets))
	for prefix := range m.Targets {
		prefixes = append(prefixes, prefix)
	}

	sort.Strings(prefixes)

	return prefixes
}

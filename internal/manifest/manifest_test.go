package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
version: 1
runner:
  full: ["sh", "tests/run_tests.sh"]
  targeted: ["sh", "tests/run_tests.sh", "-k"]
allowlist: [ls, cat]
protected:
  dirs: [tests]
  suffixes: [".lock"]
integrity:
  files: [tests/run_tests.sh]
targets:
  calc.py: [test_add]
rewards:
  thresholds:
    - {pass_rate: 0.5, reward: 0.3}
    - {pass_rate: 1.0, reward: 1.0}
  regression_penalty_rate: 0.5
run:
  max_steps: 20
bugs:
  - id: calc-add
    dependent_tests: [test_add]
`

func TestParse_Valid(t *testing.T) {
	mf, err := Parse([]byte(validManifest))
	require.NoError(t, err)

	assert.Equal(t, []string{"sh", "tests/run_tests.sh"}, mf.Runner.Full)
	assert.Equal(t, []string{"ls", "cat"}, mf.Allowlist)
	assert.Equal(t, 20, mf.Run.MaxSteps)
	assert.Len(t, mf.Bugs, 1)
	assert.Equal(t, []string{"calc.py"}, mf.TargetPrefixes())
}

func TestParse_AppliesDefaults(t *testing.T) {
	mf, err := Parse([]byte(`
runner:
  full: ["make", "test"]
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 1.0, reward: 1.0}
`))
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultMinBytes), mf.Integrity.MinBytes)
	assert.Equal(t, DefaultMaxSteps, mf.Run.MaxSteps)
	assert.Equal(t, DefaultFullEvery, mf.Run.FullEvery)
	assert.Equal(t, DefaultTimeoutSeconds, mf.Runner.TimeoutSeconds)
}

func TestParse_MissingRunner(t *testing.T) {
	_, err := Parse([]byte(`
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 1.0, reward: 1.0}
`))
	require.Error(t, err)
}

func TestParse_MissingAllowlist(t *testing.T) {
	_, err := Parse([]byte(`
runner:
  full: ["make", "test"]
rewards:
  thresholds:
    - {pass_rate: 1.0, reward: 1.0}
`))
	require.Error(t, err)
}

func TestParse_ThresholdsMustIncrease(t *testing.T) {
	_, err := Parse([]byte(`
runner:
  full: ["make", "test"]
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 0.5, reward: 0.3}
    - {pass_rate: 0.5, reward: 0.6}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")
}

func TestParse_ThresholdOutsideRange(t *testing.T) {
	_, err := Parse([]byte(`
runner:
  full: ["make", "test"]
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 1.5, reward: 1.0}
`))
	require.Error(t, err)
}

func TestParse_NegativePenaltyRate(t *testing.T) {
	_, err := Parse([]byte(`
runner:
  full: ["make", "test"]
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 1.0, reward: 1.0}
  regression_penalty_rate: -0.1
`))
	require.Error(t, err)
}

func TestParse_SchemaRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte(`
runner:
  full: ["make", "test"]
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 1.0, reward: 1.0}
surprise: true
`))
	require.Error(t, err)
}

func TestParse_ChaosBonusValidation(t *testing.T) {
	_, err := Parse([]byte(`
runner:
  full: ["make", "test"]
allowlist: [ls]
rewards:
  thresholds:
    - {pass_rate: 1.0, reward: 1.0}
  bonuses:
    chaos: {category: "", pass_rate: 0.5, weight: 0.1}
`))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does/not/exist.yaml")
	require.Error(t, err)
}

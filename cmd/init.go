package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// exampleManifest is written by `init --example` as a starting point for a
// new environment. Keep it valid against the manifest schema.
const exampleManifest = `version: 1

runner:
  full: ["sh", "tests/run_tests.sh"]
  targeted: ["sh", "tests/run_tests.sh", "-k"]
  timeout_seconds: 120

allowlist:
  - ls
  - cat
  - grep
  - sh

protected:
  dirs:
    - tests
  suffixes:
    - .lock

integrity:
  min_bytes: 100
  files:
    - tests/run_tests.sh

targets:
  calc.py:
    - tests/test_calc.py

rewards:
  thresholds:
    - {pass_rate: 0.25, reward: 0.1}
    - {pass_rate: 0.50, reward: 0.3}
    - {pass_rate: 0.75, reward: 0.6}
    - {pass_rate: 1.00, reward: 1.0}
  regression_penalty_rate: 0.5
  bonuses:
    efficiency_weight: 0.1

run:
  max_steps: 50
  full_every: 5
`

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default tbench.yaml configuration file",
		Long: `Create a tbench.yaml in the current working directory populated with the
current CLI defaults so it can be edited manually. With --example an example
environment manifest is written next to it as well.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			err := viper.SafeWriteConfigAs(targetPath)
			if err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			withExample, err := cmd.Flags().GetBool("example")
			if err != nil {
				return err
			}

			if !withExample {
				return nil
			}

			manifestPath := filepath.Join(configFolderPath, defaultManifestPath)
			if _, err := os.Stat(manifestPath); err == nil {
				return fmt.Errorf("manifest %s already exists", manifestPath)
			}

			if err := os.WriteFile(manifestPath, []byte(exampleManifest), 0o600); err != nil {
				return fmt.Errorf("failed to write example manifest: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().Bool("example", false, "also write an example environment manifest")

	return cmd
}

func init() {
	rootCmd.AddCommand(initCmd)
}

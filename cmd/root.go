// Package cmd provides the root command and CLI setup for tbench.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/domain"
	"tbench.dev/pkg/tbench/internal/manifest"
)

// manifestPathFlag selects the environment manifest shared by all commands.
var manifestPathFlag string

// workspacePathFlag is the project directory the episode operates on.
var workspacePathFlag string

// storePathFlag selects the sqlite audit store (empty disables it).
var storePathFlag string

// verboseFlag switches file logging to debug level.
var verboseFlag bool

const rootLongDescription = `tbench is a training-environment harness for code-repair agents. An agent
iteratively edits a buggy workspace through validated actions and receives a
sparse scalar reward derived from test outcomes.

The environment is declared by a manifest (runner commands, command
allowlist, protected paths, fixture inventory, reward tables); the workspace
is an ordinary project directory whose test runner speaks the TB_SUMMARY
protocol.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tbench",
		Short: "Code-repair training environment harness",
		Long:  rootLongDescription,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

// newRootCmd builds a fresh, fully configured root command for tests.
func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func init() {
	configureRootFlags(rootCmd)
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(
		&manifestPathFlag, manifestFlagName, "m",
		viper.GetString(manifestFlagName),
		"path to the environment manifest",
	)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(manifestFlagName), manifestFlagName)

	cmd.PersistentFlags().StringVarP(
		&workspacePathFlag, workspaceFlagName, "w",
		viper.GetString(workspaceFlagName),
		"workspace directory the episode operates on",
	)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(workspaceFlagName), workspaceFlagName)

	cmd.PersistentFlags().StringVar(
		&storePathFlag, storeFlagName,
		viper.GetString(storeFlagName),
		"sqlite episode audit store (empty disables persistence)",
	)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(storeFlagName), storeFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", viper.GetBool(logVerboseKey), "enable debug logging")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("verbose"), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// harness bundles the wired components one command invocation needs.
type harness struct {
	manifest     *manifest.Manifest
	workspace    adapter.WorkspaceFS
	runner       adapter.CommandRunner
	validator    *domain.ActionValidator
	verifier     *domain.IntegrityVerifier
	orchestrator domain.TestOrchestrator
	engine       *domain.RewardEngine
}

// buildHarness loads the manifest and wires every component against the
// configured workspace. Construction happens once per command; the manifest
// is immutable afterwards.
func buildHarness() (*harness, error) {
	mf, err := manifest.Load(viper.GetString(manifestFlagName))
	if err != nil {
		return nil, err
	}

	ws, err := adapter.NewLocalWorkspaceFS(viper.GetString(workspaceFlagName))
	if err != nil {
		return nil, err
	}

	protected, err := domain.NewProtectedPredicate(mf.Protected)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(mf.Runner.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultEpisodeTimeout
	}

	runner := adapter.NewLocalCommandRunner(timeout)
	verifier := domain.NewIntegrityVerifier(ws, mf.Integrity)

	return &harness{
		manifest:     mf,
		workspace:    ws,
		runner:       runner,
		validator:    domain.NewActionValidator(ws, mf.Allowlist, protected),
		verifier:     verifier,
		orchestrator: domain.NewTestOrchestrator(ws, runner, verifier, mf.Runner, mf.Targets),
		engine:       domain.NewRewardEngine(mf.Rewards),
	}, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

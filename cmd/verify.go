package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tbench.dev/pkg/tbench/internal/controller"
	"tbench.dev/pkg/tbench/internal/domain"
)

// errVerifyFindings makes `tbench verify` exit non-zero on any finding.
var errVerifyFindings = errors.New("environment verification failed")

// verifyCmd represents the verify command.
var verifyCmd = newVerifyCmd()

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the environment without running an episode",
		Long: `Verify loads the manifest, validates the bug dependency graph, and checks
the workspace fixture inventory (presence, size, and checksum prefixes).
It exits non-zero when any finding is reported.`,
		RunE: verifyEnvironment,
	}
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verifyEnvironment(cmd *cobra.Command, _ []string) error {
	configureLogger("", viper.GetBool(logVerboseKey))

	h, err := buildHarness()
	if err != nil {
		return err
	}

	failed := false

	if err := domain.ValidateBugGraph(h.manifest.Bugs); err != nil {
		cmd.Printf("bug graph: %v\n", err)

		failed = true
	} else if len(h.manifest.Bugs) > 0 {
		order, err := domain.FixOrder(h.manifest.Bugs)
		if err != nil {
			return err
		}

		cmd.Printf("bug graph: %d bugs, fix order: %v\n", len(h.manifest.Bugs), order)
	}

	report, err := h.verifier.Verify(cmd.Context())
	if err != nil {
		return fmt.Errorf("verify fixture inventory: %w", err)
	}

	ui := controller.NewSimpleUI(cmd)
	if err := ui.DisplayIntegrityReport(cmd.Context(), report); err != nil {
		return err
	}

	if failed || !report.Clean() {
		return errVerifyFindings
	}

	return nil
}

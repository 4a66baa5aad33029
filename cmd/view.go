package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tbench.dev/pkg/tbench/internal/adapter"
)

const episodeFlagName = "episode"

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse recorded episodes from the audit store",
		Long: `View lists episodes recorded in the sqlite audit store, or the individual
steps of one episode when --episode is given. Requires --store.`,
		RunE: viewEpisodes,
	}

	cmd.Flags().String(episodeFlagName, "", "show the steps of one episode id")

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func viewEpisodes(cmd *cobra.Command, _ []string) error {
	storePath := viper.GetString(storeFlagName)
	if storePath == "" {
		return errors.New("no audit store configured: pass --store")
	}

	store, err := adapter.NewEpisodeStore(storePath)
	if err != nil {
		return err
	}

	defer func() {
		_ = store.Close()
	}()

	if err := store.Init(cmd.Context()); err != nil {
		return err
	}

	episodeID, err := cmd.Flags().GetString(episodeFlagName)
	if err != nil {
		return err
	}

	if episodeID != "" {
		return renderSteps(cmd, store, episodeID)
	}

	return renderEpisodes(cmd, store)
}

func renderEpisodes(cmd *cobra.Command, store *adapter.EpisodeStore) error {
	episodes, err := store.ListEpisodes(cmd.Context())
	if err != nil {
		return err
	}

	if len(episodes) == 0 {
		cmd.Println("no episodes recorded")
		return nil
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Episode", "Status", "Steps", "Pass Rate", "Started", "Finished"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, ep := range episodes {
		table.Append([]string{
			ep.EpisodeID,
			ep.Status,
			fmt.Sprintf("%d/%d", ep.StepsTaken, ep.MaxSteps),
			fmt.Sprintf("%.3f", ep.FinalPassRate),
			ep.StartedAt,
			ep.FinishedAt,
		})
	}

	table.SetFooter([]string{"Total", "", "", "", "", fmt.Sprintf("%d", len(episodes))})
	table.Render()

	cmd.Printf("\n%s", buffer.String())

	return nil
}

func renderSteps(cmd *cobra.Command, store *adapter.EpisodeStore, episodeID string) error {
	steps, err := store.ListSteps(cmd.Context(), episodeID)
	if err != nil {
		return err
	}

	if len(steps) == 0 {
		cmd.Printf("no steps recorded for episode %s\n", episodeID)
		return nil
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Step", "Action", "Target", "Reward", "Pass Rate", "Run", "Error"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, step := range steps {
		target := step.File
		if step.ActionType == "run_command" {
			target = step.Command
		}

		run := "full"
		if step.Targeted {
			run = "targeted"
		}

		table.Append([]string{
			fmt.Sprintf("%d", step.StepNo),
			step.ActionType,
			target,
			fmt.Sprintf("%+.3f", step.Reward),
			fmt.Sprintf("%.3f", step.PassRate),
			run,
			step.Error,
		})
	}

	table.Render()

	cmd.Printf("\n%s", buffer.String())

	return nil
}

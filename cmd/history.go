package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/crytic/chainfixture/challenges"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/crytic/chainfixture/results"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// historyCmd represents the command provider for history
var historyCmd = &cobra.Command{
	Use:               "history [challenge]",
	Short:             "Shows recorded challenge runs",
	Long:              `Shows the recorded runs of a challenge, or lists the challenges with recorded runs if none is named`,
	Args:              cobra.RangeArgs(0, 1),
	ValidArgsFunction: cmdValidHistoryArgs,
	RunE:              cmdRunHistory,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	historyCmd.Flags().String("config", "", "path to config file")
	historyCmd.Flags().String("results-db", "", "path of the run history database")
	rootCmd.AddCommand(historyCmd)
}

// cmdValidHistoryArgs completes a challenge name as the only positional argument
func cmdValidHistoryArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return cmdValidFlagArgs(cmd), cobra.ShellCompDirectiveNoFileComp
	}
	return append(challenges.Names(), cmdValidFlagArgs(cmd)...), cobra.ShellCompDirectiveNoFileComp
}

// cmdRunHistory prints the recorded runs of a challenge
func cmdRunHistory(cmd *cobra.Command, args []string) error {
	projectConfig, configDirectory, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	if err = updateResultsDatabase(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	if err = os.Chdir(configDirectory); err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}

	// Opening would create an empty database, which has nothing to show
	if _, err = os.Stat(projectConfig.Results.DatabasePath); err != nil {
		err = errors.Errorf("no run history found at %s, enable results or pass --record to the run command", projectConfig.Results.DatabasePath)
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}

	store, err := results.Open(projectConfig.Results.DatabasePath)
	if err != nil {
		cmdLogger.Error("Failed to open the results database", err)
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		names, err := store.Challenges()
		if err != nil {
			cmdLogger.Error("Failed to run the history command", err)
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	records, err := store.List(args[0])
	if err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No recorded runs of %s\n", args[0])
		return nil
	}

	for _, record := range records {
		status := colors.GreenBold(colors.CHECK_MARK + " passed")
		if !record.Passed {
			status = colors.RedBold(colors.CROSS_MARK + " failed")
		}
		fmt.Fprintf(out, "%s  %s  %-7s  %8s", record.Time().Format(time.DateTime), status, record.Phase, record.Duration().Round(time.Millisecond))
		if record.Error != "" {
			fmt.Fprintf(out, "  %s", record.Error)
		}
		fmt.Fprintln(out)
	}
	return nil
}

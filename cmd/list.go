package cmd

import (
	"fmt"

	"github.com/crytic/chainfixture/challenges"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/spf13/cobra"
)

// listCmd represents the command provider for list
var listCmd = &cobra.Command{
	Use:           "list",
	Short:         "Lists the available challenges",
	Long:          `Lists the available challenges along with the contract artifacts each of them needs`,
	Args:          cobra.NoArgs,
	RunE:          cmdRunList,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// cmdRunList prints every registered challenge
func cmdRunList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, s := range challenges.All() {
		fmt.Fprintf(out, "%s\t%s\n", colors.Bold(s.Name), s.Description)
		fmt.Fprintf(out, "\tcontracts: %v\n", s.Contracts)
	}
	return nil
}

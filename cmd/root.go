package cmd

import (
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by the CLI before and independently of the project's configured logger.
var cmdLogger = logging.NewLogger(zerolog.InfoLevel, true).NewSubLogger("module", logging.CLI_SERVICE)

var rootCmd = &cobra.Command{
	Use:     "chainfixture",
	Short:   "A smart contract security challenge harness",
	Long:    "chainfixture deploys security challenges onto a simulated chain, runs your exploits and checks whether they succeeded",
	Version: version.GetInfo().Short(),
}

// Execute runs the root command, which parses the command line and dispatches to the matching sub-command.
func Execute() error {
	return rootCmd.Execute()
}

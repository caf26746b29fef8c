package cmd

import (
	"fmt"

	"github.com/crytic/chainfixture/configs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// addRunFlags adds the various flags for the run command
func addRunFlags() {
	defaultConfig := configs.GetDefaultProjectConfig()

	// Prevent alphabetical sorting of usage message
	runCmd.Flags().SortFlags = false

	runCmd.Flags().String("config", "", "path to config file")
	runCmd.Flags().String("contracts-dir", "",
		fmt.Sprintf("directory holding the challenge contract artifacts (unless a config file is provided, default is %q)", defaultConfig.Challenges.ContractsDirectory))
	runCmd.Flags().String("compiler-version", "",
		"semantic version constraint the solc version of every artifact must satisfy, e.g. \">= 0.8.0\"")
	runCmd.Flags().Bool("stop-on-failure", false,
		fmt.Sprintf("stop after the first failing challenge (unless a config file is provided, default is %t)", defaultConfig.Challenges.StopOnFailure))
	runCmd.Flags().Bool("retry-invalid-snapshot", false,
		fmt.Sprintf("set up a challenge again if its cached snapshot is no longer valid (unless a config file is provided, default is %t)", defaultConfig.Fixture.RetryOnInvalidSnapshot))
	runCmd.Flags().Bool("record", false,
		fmt.Sprintf("record results in the run history database (unless a config file is provided, default is %t)", defaultConfig.Results.Enabled))
	runCmd.Flags().String("results-db", "",
		fmt.Sprintf("path of the run history database (unless a config file is provided, default is %q)", defaultConfig.Results.DatabasePath))
	runCmd.Flags().String("log-level", "",
		fmt.Sprintf("minimum level of emitted logs (unless a config file is provided, default is %q)", defaultConfig.Logging.Level.String()))
}

// updateProjectConfigWithRunFlags will update the given projectConfig with any CLI arguments that were provided to the run command
func updateProjectConfigWithRunFlags(cmd *cobra.Command, projectConfig *configs.ProjectConfig) error {
	if err := updateContractsDirectory(cmd, projectConfig); err != nil {
		return err
	}

	if cmd.Flags().Changed("compiler-version") {
		constraint, err := cmd.Flags().GetString("compiler-version")
		if err != nil {
			return err
		}
		projectConfig.Challenges.CompilerVersionConstraint = constraint
	}

	if cmd.Flags().Changed("stop-on-failure") {
		stopOnFailure, err := cmd.Flags().GetBool("stop-on-failure")
		if err != nil {
			return err
		}
		projectConfig.Challenges.StopOnFailure = stopOnFailure
	}

	if cmd.Flags().Changed("retry-invalid-snapshot") {
		retry, err := cmd.Flags().GetBool("retry-invalid-snapshot")
		if err != nil {
			return err
		}
		projectConfig.Fixture.RetryOnInvalidSnapshot = retry
	}

	if cmd.Flags().Changed("record") {
		record, err := cmd.Flags().GetBool("record")
		if err != nil {
			return err
		}
		projectConfig.Results.Enabled = record
	}

	if err := updateResultsDatabase(cmd, projectConfig); err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		levelString, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		level, err := zerolog.ParseLevel(levelString)
		if err != nil {
			return err
		}
		projectConfig.Logging.Level = level
	}
	return nil
}

// updateResultsDatabase updates the results database path in projectConfig if the --results-db flag was used
func updateResultsDatabase(cmd *cobra.Command, projectConfig *configs.ProjectConfig) error {
	if !cmd.Flags().Changed("results-db") {
		return nil
	}

	databasePath, err := cmd.Flags().GetString("results-db")
	if err != nil {
		return err
	}
	projectConfig.Results.DatabasePath = databasePath
	return nil
}

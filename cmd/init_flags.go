package cmd

import (
	"fmt"

	"github.com/crytic/chainfixture/configs"
	"github.com/spf13/cobra"
)

// addInitFlags adds the various flags for the init command
func addInitFlags() {
	defaultConfig := configs.GetDefaultProjectConfig()

	initCmd.Flags().String("out", "", "output path for the new project configuration file")
	initCmd.Flags().Bool("force", false, "overwrite an existing configuration file without prompting")
	initCmd.Flags().String("contracts-dir", "",
		fmt.Sprintf("directory holding the challenge contract artifacts (default is %q)", defaultConfig.Challenges.ContractsDirectory))
}

// updateProjectConfigWithInitFlags will update the given projectConfig with any CLI arguments that were provided to the init command
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *configs.ProjectConfig) error {
	return updateContractsDirectory(cmd, projectConfig)
}

// updateContractsDirectory updates the contracts directory in projectConfig if the --contracts-dir flag was used
func updateContractsDirectory(cmd *cobra.Command, projectConfig *configs.ProjectConfig) error {
	if !cmd.Flags().Changed("contracts-dir") {
		return nil
	}

	contractsDirectory, err := cmd.Flags().GetString("contracts-dir")
	if err != nil {
		return err
	}
	projectConfig.Challenges.ContractsDirectory = contractsDirectory
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/spf13/cobra"
)

// initCmd represents the command provider for init
var initCmd = &cobra.Command{
	Use:               "init",
	Short:             "Initializes a project configuration",
	Long:              `Initializes a project configuration`,
	Args:              cmdValidateInitArgs,
	ValidArgsFunction: cmdValidInitArgs,
	RunE:              cmdRunInit,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	addInitFlags()
	rootCmd.AddCommand(initCmd)
}

// cmdValidInitArgs returns the flags of the init command that are still available for dynamic completion
func cmdValidInitArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return cmdValidFlagArgs(cmd), cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateInitArgs makes sure that there are no positional arguments provided to the init command
func cmdValidateInitArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		err = fmt.Errorf("init does not accept any positional arguments, only flags and their associated values")
		cmdLogger.Error("Failed to validate args to the init command", err)
		return err
	}
	return nil
}

// cmdRunInit writes the default project configuration, updated with any flags, to the output path
func cmdRunInit(cmd *cobra.Command, args []string) error {
	outputPath, err := cmd.Flags().GetString("out")
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	// Without --out, the configuration goes to the working directory
	if outputPath == "" {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the init command", err)
			return err
		}
		outputPath = filepath.Join(workingDirectory, configs.DefaultProjectConfigFilename)
	}

	projectConfig := configs.GetDefaultProjectConfig()
	if err = updateProjectConfigWithInitFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	if _, err = os.Stat(outputPath); err == nil {
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			cmdLogger.Error("Failed to run the init command", err)
			return err
		}

		if !force {
			// Prompt user for overwrite confirmation
			fmt.Print("The file already exists. Overwrite? (y/n): ")
			var response string
			if _, err := fmt.Fscan(cmd.InOrStdin(), &response); err != nil {
				cmdLogger.Error("Failed to scan input", err)
				return err
			}
			if response != "y" && response != "Y" {
				fmt.Println("Operation canceled.")
				return nil
			}
		}
	}

	if err = projectConfig.WriteToFile(outputPath); err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	if absoluteOutputPath, err := filepath.Abs(outputPath); err == nil {
		outputPath = absoluteOutputPath
	}
	cmdLogger.Info("Project configuration successfully output to: ", colors.Bold, outputPath, colors.Reset)
	return nil
}

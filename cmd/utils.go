package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// loadProjectConfig resolves the project configuration for a command:
// #1: If --config was used, the file must exist and is read.
// #2: Otherwise, chainfixture.json in the working directory is read if it exists.
// #3: Otherwise, the default project configuration is used.
// Returns the configuration along with the directory relative paths in it are resolved against.
func loadProjectConfig(cmd *cobra.Command) (*configs.ProjectConfig, string, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}

	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		configPath = filepath.Join(workingDirectory, configs.DefaultProjectConfigFilename)
	}

	_, existenceError := os.Stat(configPath)
	if existenceError == nil {
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		projectConfig, err := configs.ReadProjectConfigFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		return projectConfig, filepath.Dir(configPath), nil
	}

	if configFlagUsed {
		return nil, "", existenceError
	}

	cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration instead", configPath))
	return configs.GetDefaultProjectConfig(), filepath.Dir(configPath), nil
}

// cmdValidFlagArgs returns the flags of a command which have not been set yet, for dynamic completion.
func cmdValidFlagArgs(cmd *cobra.Command) []string {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		// The "--" prefix marks these as flags rather than positional arguments
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags
}

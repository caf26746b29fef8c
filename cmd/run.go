package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/crytic/chainfixture/challenges"
	"github.com/crytic/chainfixture/cmd/exitcodes"
	"github.com/crytic/chainfixture/compilation"
	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/crytic/chainfixture/results"
	"github.com/crytic/chainfixture/scenario"
	"github.com/crytic/chainfixture/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

// stateDirectory holds files the CLI keeps between runs, relative to the project configuration.
const stateDirectory = ".chainfixture"

// runCmd represents the command provider for run
var runCmd = &cobra.Command{
	Use:               "run [challenge...]",
	Short:             "Runs challenges and checks whether their exploits succeed",
	Long:              `Runs the named challenges, or every challenge if none are named, and checks whether their exploits succeed`,
	Args:              cmdValidateRunArgs,
	ValidArgsFunction: cmdValidRunArgs,
	RunE:              cmdRunRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	addRunFlags()
	rootCmd.AddCommand(runCmd)
}

// cmdValidRunArgs completes challenge names that were not given yet, along with unused flags
func cmdValidRunArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	suggestions := utils.SliceWhere(challenges.Names(), func(name string) bool {
		return !slices.Contains(args, name)
	})
	return append(suggestions, cmdValidFlagArgs(cmd)...), cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateRunArgs makes sure every positional argument names a registered challenge
func cmdValidateRunArgs(cmd *cobra.Command, args []string) error {
	if _, err := challenges.Select(args); err != nil {
		cmdLogger.Error("Failed to validate args to the run command", err)
		return err
	}
	return nil
}

// cmdRunRun executes the run CLI command
func cmdRunRun(cmd *cobra.Command, args []string) error {
	projectConfig, configDirectory, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	if err = updateProjectConfigWithRunFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}
	if len(args) > 0 {
		projectConfig.Challenges.Selected = args
	}
	if err = projectConfig.Validate(); err != nil {
		cmdLogger.Error("Invalid project configuration", err)
		return err
	}

	// Paths in the configuration are relative to the directory it was read from
	if err = os.Chdir(configDirectory); err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	closeLogFile, err := configureLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to set up logging", err)
		return err
	}
	defer closeLogFile()

	selected, err := challenges.Select(projectConfig.Challenges.Selected)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	names := utils.SliceSelect(selected, func(s scenario.Scenario) string { return s.Name })
	cmdLogger.Info("Running ", len(selected), " challenge(s): ", colors.Bold, strings.Join(names, ", "), colors.Reset)

	harness, err := scenario.NewHarness(projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to create the harness", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHarnessError)
	}
	defer harness.Close()

	runner := scenario.NewRunner(harness, projectConfig.Fixture, projectConfig.Challenges.StopOnFailure)
	if err = runner.Preload(selected); err != nil {
		cmdLogger.Error("Failed to load the challenge contracts", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHarnessError)
	}
	compilation.NotifyArtifactHashStatus(harness.Artifacts.Loaded(), stateDirectory, cmdLogger)

	if projectConfig.Results.Enabled {
		store, err := results.Open(projectConfig.Results.DatabasePath)
		if err != nil {
			cmdLogger.Error("Failed to open the results database", err)
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHarnessError)
		}
		defer store.Close()
		store.Record(runner)
	}

	// Stop running challenges on keyboard interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()

	runResults := runner.RunAll(ctx, selected)
	printResults(cmd, runResults)

	if len(runResults) < len(selected) && ctx.Err() != nil {
		return exitcodes.NewErrorWithExitCode(errors.New("run interrupted"), exitcodes.ExitCodeHarnessError)
	}
	if _, failed := scenario.Summarize(runResults); failed > 0 {
		return exitcodes.NewErrorWithExitCode(fmt.Errorf("%d challenge(s) failed", failed), exitcodes.ExitCodeChallengeFailed)
	}
	return nil
}

// configureLogging replaces the global logger with one built from the logging configuration. If a log directory is
// configured, structured logs are also written to a new file in it. The returned function closes that file.
func configureLogging(loggingConfig configs.LoggingConfig) (func(), error) {
	logging.GlobalLogger = logging.NewLogger(loggingConfig.Level, loggingConfig.EnableConsoleLogging)
	if loggingConfig.LogDirectory == "" {
		return func() {}, nil
	}

	if err := utils.MakeDirectory(loggingConfig.LogDirectory); err != nil {
		return nil, err
	}
	fileName := "chainfixture-" + time.Now().Format("20060102-150405") + ".log"
	file, err := os.Create(filepath.Join(loggingConfig.LogDirectory, fileName))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	logging.GlobalLogger.AddWriter(file, logging.STRUCTURED)
	return func() {
		logging.GlobalLogger.RemoveWriter(file)
		_ = file.Close()
	}, nil
}

// printResults writes one line per challenge result followed by a summary.
func printResults(cmd *cobra.Command, runResults []scenario.Result) {
	out := cmd.OutOrStdout()
	for _, result := range runResults {
		if result.Passed {
			fmt.Fprintf(out, "%s %s\n", colors.GreenBold(colors.CHECK_MARK), result.Name)
		} else {
			fmt.Fprintf(out, "%s %s (%s): %v\n", colors.RedBold(colors.CROSS_MARK), result.Name, result.Phase, result.Err)
		}
	}

	passed, failed := scenario.Summarize(runResults)
	fmt.Fprintf(out, "\n%d passed, %d failed\n", passed, failed)
}

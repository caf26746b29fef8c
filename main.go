package main

import (
	"fmt"
	"os"

	"github.com/crytic/chainfixture/cmd"
	"github.com/crytic/chainfixture/cmd/exitcodes"
)

func main() {
	// Run our root CLI command, which contains all underlying command logic and will handle parsing/invocation.
	err := cmd.Execute()

	// Obtain the actual error and exit code from the error, if any.
	var exitCode int
	err, exitCode = exitcodes.GetInnerErrorAndExitCode(err)

	// Errors from failed challenges were already reported with the results.
	if err != nil && exitCode != exitcodes.ExitCodeHandledError && exitCode != exitcodes.ExitCodeChallengeFailed {
		fmt.Fprintln(os.Stderr, err)
	}

	if exitCode != exitcodes.ExitCodeSuccess {
		os.Exit(exitCode)
	}
}

package scenario

import (
	"context"
	"time"
)

// Phase names a stage of a scenario run.
type Phase string

const (
	// PhaseSetup provisions the scenario's contracts. Its outcome is cached as a fixture.
	PhaseSetup Phase = "setup"
	// PhaseExploit runs the player's attack against the provisioned contracts.
	PhaseExploit Phase = "exploit"
	// PhaseCheck verifies the scenario's success condition.
	PhaseCheck Phase = "check"
)

// Scenario describes a challenge: how to provision it, how to attack it and how to tell whether the attack worked.
type Scenario struct {
	// Name uniquely identifies the scenario within a Runner.
	Name string

	// Description is a one-line summary shown by the CLI.
	Description string

	// Contracts lists the artifacts Setup loads, so they can be loaded and verified before any scenario runs.
	Contracts []string

	// Setup deploys the scenario's contracts and returns what it deployed. It runs at most once per Runner.
	Setup func(ctx context.Context, h *Harness) (*Env, error)

	// Exploit attacks the deployed contracts as the player. A nil Exploit does nothing.
	Exploit func(ctx context.Context, h *Harness, env *Env) error

	// Check returns nil if the exploit succeeded, or an error wrapping ErrAssertionFailed if it did not.
	Check func(ctx context.Context, h *Harness, env *Env) error
}

// Result is the outcome of one scenario run.
type Result struct {
	// Name is the name of the scenario that ran.
	Name string

	// Passed is true if every phase completed without error.
	Passed bool

	// Phase is the last phase that ran. For a failed run, it is the phase that failed.
	Phase Phase

	// Err is the error the failing phase returned, or nil.
	Err error

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is how long the run took.
	Duration time.Duration
}

// Summarize counts the passed and failed results.
func Summarize(results []Result) (passed int, failed int) {
	for _, result := range results {
		if result.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

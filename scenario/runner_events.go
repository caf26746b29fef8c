package scenario

import (
	"github.com/crytic/chainfixture/events"
)

// RunnerEvents defines the event emitters a Runner publishes to.
type RunnerEvents struct {
	// ScenarioStarted is published before a scenario's setup phase is entered.
	ScenarioStarted events.EventEmitter[ScenarioStartedEvent]

	// ScenarioFinished is published once a scenario run has completed, whether or not it passed.
	ScenarioFinished events.EventEmitter[ScenarioFinishedEvent]
}

// ScenarioStartedEvent describes a scenario run that is about to begin.
type ScenarioStartedEvent struct {
	// Runner is the Runner running the scenario.
	Runner *Runner

	// Scenario is the scenario about to run.
	Scenario *Scenario
}

// ScenarioFinishedEvent describes a completed scenario run.
type ScenarioFinishedEvent struct {
	// Runner is the Runner that ran the scenario.
	Runner *Runner

	// Result is the outcome of the run.
	Result Result
}

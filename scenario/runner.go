package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/fixture"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/crytic/chainfixture/utils"
	"github.com/pkg/errors"
)

// Runner runs scenarios against a Harness. Each scenario's setup is wrapped in a fixture, so it runs once per Runner
// and every later run of the scenario starts from the state setup left behind.
type Runner struct {
	// harness is the chain and artifacts scenarios run against.
	harness *Harness

	// cache stores the outcome of every scenario setup.
	cache *fixture.Cache

	// fixtures maps scenario names to the fixture wrapping their setup.
	fixtures map[string]*fixture.Fixture[*Env]

	// runLock serializes runs, since exploits mutate the shared chain.
	runLock sync.Mutex

	// fixturesLock guards fixtures.
	fixturesLock sync.Mutex

	// stopOnFailure stops RunAll at the first failing scenario.
	stopOnFailure bool

	// Events describes the event system for the Runner.
	Events RunnerEvents

	// logger describes the runner's sub-logger
	logger *logging.Logger
}

// NewRunner creates a Runner over the provided harness.
func NewRunner(harness *Harness, fixtureConfig configs.FixtureConfig, stopOnFailure bool) *Runner {
	return &Runner{
		harness:       harness,
		cache:         fixture.NewCache(harness.Chain, fixtureConfig),
		fixtures:      make(map[string]*fixture.Fixture[*Env]),
		stopOnFailure: stopOnFailure,
		logger:        logging.GlobalLogger.NewSubLogger("module", logging.SCENARIO_SERVICE),
	}
}

// Harness returns the harness the runner runs scenarios against.
func (r *Runner) Harness() *Harness {
	return r.harness
}

// Preload loads every artifact the given scenarios declare, so missing or mismatched artifacts are reported before
// any scenario runs.
func (r *Runner) Preload(scenarios []Scenario) error {
	for _, s := range scenarios {
		for _, name := range s.Contracts {
			if _, err := r.harness.Artifacts.Load(name); err != nil {
				return errors.Wrapf(err, "scenario %s", s.Name)
			}
		}
	}
	return nil
}

// fixtureFor returns the fixture wrapping the scenario's setup, creating it on first use.
func (r *Runner) fixtureFor(s *Scenario) *fixture.Fixture[*Env] {
	r.fixturesLock.Lock()
	defer r.fixturesLock.Unlock()

	if f, ok := r.fixtures[s.Name]; ok {
		return f
	}

	setup := s.Setup
	f := fixture.New[*Env](s.Name, func(ctx context.Context) (*Env, error) {
		return setup(ctx, r.harness)
	})
	r.fixtures[s.Name] = f
	return f
}

// Run runs a scenario's phases in order and reports the outcome. Errors from any phase are captured in the Result.
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	r.runLock.Lock()
	defer r.runLock.Unlock()

	if err := r.Events.ScenarioStarted.Publish(ScenarioStartedEvent{Runner: r, Scenario: &s}); err != nil {
		r.logger.Warn("Scenario started event handler failed", err)
	}

	start := time.Now()
	phase, err := r.run(ctx, &s)
	result := Result{
		Name:      s.Name,
		Passed:    err == nil,
		Phase:     phase,
		Err:       err,
		StartedAt: start,
		Duration:  time.Since(start),
	}

	if result.Passed {
		r.logger.Info(colors.GreenBold, colors.CHECK_MARK, " ", s.Name, colors.Reset, " passed in ", result.Duration.Round(time.Millisecond))
	} else {
		r.logger.Error(colors.RedBold, colors.CROSS_MARK, " ", s.Name, colors.Reset, " failed during ", string(phase), ": ", err.Error())
	}

	if err := r.Events.ScenarioFinished.Publish(ScenarioFinishedEvent{Runner: r, Result: result}); err != nil {
		r.logger.Warn("Scenario finished event handler failed", err)
	}
	return result
}

// run executes the phases of a scenario and returns the last phase entered along with its error.
func (r *Runner) run(ctx context.Context, s *Scenario) (Phase, error) {
	if s.Setup == nil || s.Check == nil {
		return PhaseSetup, errors.Errorf("scenario %s must define both a setup and a check", s.Name)
	}

	env, err := fixture.Load(ctx, r.cache, r.fixtureFor(s))
	if err != nil {
		return PhaseSetup, err
	}

	if err = utils.ContextDoneError(ctx, string(PhaseExploit)); err != nil {
		return PhaseExploit, err
	}
	if s.Exploit != nil {
		if err = s.Exploit(ctx, r.harness, env); err != nil {
			return PhaseExploit, err
		}
	}

	if err = utils.ContextDoneError(ctx, string(PhaseCheck)); err != nil {
		return PhaseCheck, err
	}
	return PhaseCheck, s.Check(ctx, r.harness, env)
}

// RunAll runs the scenarios in order. It stops early if the context is cancelled, or at the first failure if the
// runner was configured to. Only the scenarios that ran have a Result.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		if utils.CheckContextDone(ctx) {
			r.logger.Warn("Run cancelled, skipping remaining scenarios")
			break
		}

		result := r.Run(ctx, s)
		results = append(results, result)
		if !result.Passed && r.stopOnFailure {
			break
		}
	}

	passed, failed := Summarize(results)
	r.logger.Info("Ran ", len(results), " scenario(s): ", colors.Green, passed, " passed", colors.Reset, ", ", colors.Red, failed, " failed")
	return results
}

// Reset discards every cached setup, so the next run of each scenario sets it up again.
func (r *Runner) Reset() {
	r.runLock.Lock()
	defer r.runLock.Unlock()
	r.cache.Clear()
}

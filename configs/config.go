package configs

import (
	"encoding/json"
	"os"

	"github.com/Masterminds/semver"
	"github.com/crytic/chainfixture/chain/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = "chainfixture.json"

// ProjectConfig describes the configuration of a challenge project.
type ProjectConfig struct {
	// Chain represents the chain.TestChain config to use when initializing the chain scenarios run against.
	Chain config.TestChainConfig `json:"chainConfig"`

	// Fixture describes the configuration used by fixture caches.
	Fixture FixtureConfig `json:"fixture"`

	// Challenges describes which challenges run and where their contract artifacts live.
	Challenges ChallengesConfig `json:"challenges"`

	// Logging describes the configuration used for logging
	Logging LoggingConfig `json:"loggingConfig"`

	// Results describes where run history is recorded.
	Results ResultsConfig `json:"results"`
}

// FixtureConfig describes the configuration options used by fixture.Cache.
type FixtureConfig struct {
	// RetryOnInvalidSnapshot describes whether a cached fixture whose snapshot the chain no longer knows about
	// should be dropped and set up again, rather than failing the load.
	RetryOnInvalidSnapshot bool `json:"retryOnInvalidSnapshot"`
}

// ChallengesConfig describes the configuration options used to run challenges.
type ChallengesConfig struct {
	// ContractsDirectory describes the directory holding <Name>.abi.json and <Name>.bytecode.json artifacts.
	ContractsDirectory string `json:"contractsDirectory"`

	// CompilerVersionConstraint is a semantic version constraint (e.g. ">= 0.8.0") the solc version embedded in each
	// artifact's metadata must satisfy. An empty constraint, or an artifact without metadata, is not checked.
	CompilerVersionConstraint string `json:"compilerVersionConstraint"`

	// Selected describes which challenges to run by name. If empty, every registered challenge is run.
	Selected []string `json:"selected"`

	// StopOnFailure describes whether a run should stop after the first challenge which fails.
	StopOnFailure bool `json:"stopOnFailure"`

	// DeployerAccountIndex is the index of the genesis account that deploys challenge contracts.
	DeployerAccountIndex int `json:"deployerAccountIndex"`

	// PlayerAccountIndex is the index of the genesis account the exploit acts as.
	PlayerAccountIndex int `json:"playerAccountIndex"`
}

// LoggingConfig describes the configuration options used for logging
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	// Increasing level values represent more severe logs
	Level zerolog.Level `json:"level"`

	// EnableConsoleLogging describes whether console logging is enabled
	EnableConsoleLogging bool `json:"enableConsoleLogging"`

	// LogDirectory describes the directory where structured log _files_ will be outputted. If the string is empty, then
	// no log files are kept
	LogDirectory string `json:"logDirectory"`
}

// ResultsConfig describes the configuration options used for recording run history.
type ResultsConfig struct {
	// Enabled describes whether challenge results are recorded.
	Enabled bool `json:"enabled"`

	// DatabasePath describes the path of the results database file.
	DatabasePath string `json:"databasePath"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path. Fields missing from the
// file keep their default values.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	projectConfig := GetDefaultProjectConfig()
	err = json.Unmarshal(b, projectConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	if err := p.Chain.Validate(); err != nil {
		return err
	}

	// Verify both roles refer to a genesis account
	accountCount := p.Chain.Accounts.Count
	if p.Challenges.DeployerAccountIndex < 0 || p.Challenges.DeployerAccountIndex >= accountCount {
		return errors.Errorf("deployer account index %d is out of range for %d accounts", p.Challenges.DeployerAccountIndex, accountCount)
	}
	if p.Challenges.PlayerAccountIndex < 0 || p.Challenges.PlayerAccountIndex >= accountCount {
		return errors.Errorf("player account index %d is out of range for %d accounts", p.Challenges.PlayerAccountIndex, accountCount)
	}
	if p.Challenges.DeployerAccountIndex == p.Challenges.PlayerAccountIndex {
		return errors.Errorf("the deployer and the player must be different accounts")
	}

	if _, err := p.Challenges.VersionConstraint(); err != nil {
		return err
	}

	if p.Results.Enabled && p.Results.DatabasePath == "" {
		return errors.Errorf("a results database path must be provided when results are enabled")
	}
	return nil
}

// VersionConstraint parses CompilerVersionConstraint. It returns nil if no constraint is configured.
func (c *ChallengesConfig) VersionConstraint() (*semver.Constraints, error) {
	if c.CompilerVersionConstraint == "" {
		return nil, nil
	}
	constraint, err := semver.NewConstraint(c.CompilerVersionConstraint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid compiler version constraint %q", c.CompilerVersionConstraint)
	}
	return constraint, nil
}

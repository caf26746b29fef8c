package configs

import (
	"github.com/crytic/chainfixture/chain/config"
	"github.com/rs/zerolog"
)

// GetDefaultProjectConfig obtains a default configuration for a project.
func GetDefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Chain: *config.DefaultTestChainConfig(),
		Fixture: FixtureConfig{
			RetryOnInvalidSnapshot: false,
		},
		Challenges: ChallengesConfig{
			ContractsDirectory:        "contracts",
			CompilerVersionConstraint: "",
			Selected:                  []string{},
			StopOnFailure:             false,
			DeployerAccountIndex:      0,
			PlayerAccountIndex:        1,
		},
		Logging: LoggingConfig{
			Level:                zerolog.InfoLevel,
			EnableConsoleLogging: true,
			LogDirectory:         "",
		},
		Results: ResultsConfig{
			Enabled:      false,
			DatabasePath: ".chainfixture/results.db",
		},
	}
}

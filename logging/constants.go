package logging

// These constants identify the services that log, and are used as the value of the "module" key of sub-loggers.
const (
	// CHAIN_SERVICE is the constant used to identify the chain package
	CHAIN_SERVICE = "chain"
	// FIXTURE_SERVICE is the constant used to identify the fixture package
	FIXTURE_SERVICE = "fixture"
	// SCENARIO_SERVICE is the constant used to identify the scenario package
	SCENARIO_SERVICE = "scenario"
	// COMPILATION_SERVICE is the constant used to identify the compilation package
	COMPILATION_SERVICE = "compilation"
	// RESULTS_SERVICE is the constant used to identify the results package
	RESULTS_SERVICE = "results"
	// CLI_SERVICE is the constant used to identify the cmd package
	CLI_SERVICE = "cli"
)

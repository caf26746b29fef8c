package challenges

import (
	"context"
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/chainfixture/compilation"
	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/scenario"
	"github.com/crytic/chainfixture/utils/testutils"
	"github.com/crytic/medusa-geth/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// democracyAbi lets the counter contract stand in for Democracy, which only needs a constructor.
	democracyAbi = `[{"type":"constructor","inputs":[],"stateMutability":"nonpayable"}]`

	// forgeAbi declares the Forge methods the challenge uses.
	forgeAbi = `[
		{"type":"function","name":"mint","stateMutability":"nonpayable","outputs":[],"inputs":[
			{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}]},
		{"type":"function","name":"balanceOf","stateMutability":"view","outputs":[{"name":"","type":"uint256"}],"inputs":[
			{"name":"account","type":"address"},{"name":"id","type":"uint256"}]}
	]`
)

// constantOneInitBytecode deploys a contract that returns the word 1 for any calldata:
// PUSH1 1 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
var constantOneInitBytecode = append(common.FromHex("0x600a600c600039600a6000f3"), common.FromHex("0x600160005260206000f3")...)

// writeArtifact writes a combined artifact for name into directory.
func writeArtifact(t *testing.T, directory string, name string, abiJSON string, initBytecode []byte) {
	artifact := `{"abi":` + abiJSON + `,"bytecode":"0x` + hex.EncodeToString(initBytecode) + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(directory, name+".json"), []byte(artifact), 0644))
}

// createRunner creates a runner over a harness loading artifacts from directory.
func createRunner(t *testing.T, directory string) *scenario.Runner {
	projectConfig := configs.GetDefaultProjectConfig()
	projectConfig.Chain.Accounts.Count = 2
	projectConfig.Challenges.ContractsDirectory = directory

	harness, err := scenario.NewHarness(projectConfig)
	require.NoError(t, err)
	t.Cleanup(harness.Close)
	return scenario.NewRunner(harness, projectConfig.Fixture, false)
}

// TestRegistry verifies challenges are listed in name order and resolved by name.
func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"democracy", "forge"}, Names())

	all := All()
	require.Len(t, all, 2)
	for _, s := range all {
		assert.NotEmpty(t, s.Description)
		assert.NotEmpty(t, s.Contracts)
		assert.NotNil(t, s.Setup)
		assert.NotNil(t, s.Check)
	}

	forge, err := ByName("forge")
	require.NoError(t, err)
	assert.Equal(t, "forge", forge.Name)

	_, err = ByName("missing")
	assert.True(t, errors.Is(err, ErrUnknownChallenge))

	selected, err := Select([]string{"forge", "democracy"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "forge", selected[0].Name)

	selected, err = Select(nil)
	require.NoError(t, err)
	assert.Len(t, selected, 2)

	_, err = Select([]string{"democracy", "missing"})
	assert.Error(t, err)
}

// TestChallengesRequireArtifacts verifies a missing artifact fails the setup phase.
func TestChallengesRequireArtifacts(t *testing.T) {
	runner := createRunner(t, t.TempDir())

	assert.True(t, errors.Is(runner.Preload(All()), compilation.ErrArtifactNotFound))
	for _, result := range runner.RunAll(context.Background(), All()) {
		assert.False(t, result.Passed)
		assert.Equal(t, scenario.PhaseSetup, result.Phase)
		assert.True(t, errors.Is(result.Err, compilation.ErrArtifactNotFound))
	}
}

// TestDemocracy verifies the check reads the contract balance, and that every run starts from the setup snapshot
// regardless of the ether a previous run sent to the contract.
func TestDemocracy(t *testing.T) {
	directory := t.TempDir()
	writeArtifact(t, directory, "Democracy", democracyAbi, testutils.CounterInitBytecode)
	runner := createRunner(t, directory)

	democracy, err := ByName("democracy")
	require.NoError(t, err)

	result := runner.Run(context.Background(), democracy)
	assert.True(t, result.Passed, "%v", result.Err)

	// Funding the contract fails the check
	funding := democracy
	funding.Exploit = func(ctx context.Context, h *scenario.Harness, env *scenario.Env) error {
		deployed, err := env.Contract("democracy")
		if err != nil {
			return err
		}
		return h.Chain.Transfer(env.Player.Address, deployed.Address, big.NewInt(1_000))
	}
	result = runner.Run(context.Background(), funding)
	assert.False(t, result.Passed)
	assert.Equal(t, scenario.PhaseCheck, result.Phase)
	assert.True(t, errors.Is(result.Err, scenario.ErrAssertionFailed))

	// The next run starts from the empty contract again
	result = runner.Run(context.Background(), democracy)
	assert.True(t, result.Passed, "%v", result.Err)
}

// TestForge verifies the setup mints to the player and the check reads the target token balance.
func TestForge(t *testing.T) {
	directory := t.TempDir()
	writeArtifact(t, directory, "Forge", forgeAbi, constantOneInitBytecode)
	runner := createRunner(t, directory)

	forge, err := ByName("forge")
	require.NoError(t, err)

	// The stand-in contract reports a balance of one for every token
	result := runner.Run(context.Background(), forge)
	assert.True(t, result.Passed, "%v", result.Err)
	assert.Equal(t, scenario.PhaseCheck, result.Phase)
}

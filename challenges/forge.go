package challenges

import (
	"context"
	"math/big"

	"github.com/crytic/chainfixture/scenario"
	"github.com/pkg/errors"
)

const (
	// forgeStarterTokenID is the token the deployer mints to the player during setup.
	forgeStarterTokenID = 1
	// forgeTargetTokenID is the token the player must end up holding.
	forgeTargetTokenID = 42
)

func init() {
	register(scenario.Scenario{
		Name:        "forge",
		Description: "Turn the starter Forge token into the target token",
		Contracts:   []string{"Forge"},
		Setup:       setupForge,
		Exploit:     exploitForge,
		Check:       checkForge,
	})
}

func setupForge(ctx context.Context, h *scenario.Harness) (*scenario.Env, error) {
	env := scenario.NewEnv(h.Deployer, h.Player)

	forge, err := h.Deploy(h.Deployer.Address, "Forge", nil)
	if err != nil {
		return nil, err
	}
	env.Contracts["forge"] = forge

	// The owner hands the player one starter token
	err = h.Transact(h.Deployer.Address, forge, nil, "mint", h.Player.Address, big.NewInt(forgeStarterTokenID), big.NewInt(1), []byte{})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// exploitForge is where the player's attack goes.
func exploitForge(ctx context.Context, h *scenario.Harness, env *scenario.Env) error {
	return nil
}

func checkForge(ctx context.Context, h *scenario.Harness, env *scenario.Env) error {
	forge, err := env.Contract("forge")
	if err != nil {
		return err
	}

	outputs, err := h.Call(env.Player.Address, forge, "balanceOf", env.Player.Address, big.NewInt(forgeTargetTokenID))
	if err != nil {
		return err
	}
	if len(outputs) != 1 {
		return errors.Errorf("balanceOf returned %d values", len(outputs))
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return errors.Errorf("balanceOf returned %T", outputs[0])
	}
	return scenario.Assertf(balance.Cmp(big.NewInt(1)) == 0, "player holds %v of token %d, expected 1", balance, forgeTargetTokenID)
}

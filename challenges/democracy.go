package challenges

import (
	"context"

	"github.com/crytic/chainfixture/scenario"
	"github.com/crytic/chainfixture/utils"
)

func init() {
	register(scenario.Scenario{
		Name:        "democracy",
		Description: "Leave the Democracy contract without any ether",
		Contracts:   []string{"Democracy"},
		Setup:       setupDemocracy,
		Exploit:     exploitDemocracy,
		Check:       checkDemocracy,
	})
}

func setupDemocracy(ctx context.Context, h *scenario.Harness) (*scenario.Env, error) {
	env := scenario.NewEnv(h.Deployer, h.Player)

	democracy, err := h.Deploy(h.Deployer.Address, "Democracy", nil)
	if err != nil {
		return nil, err
	}
	env.Contracts["democracy"] = democracy
	return env, nil
}

// exploitDemocracy is where the player's attack goes.
func exploitDemocracy(ctx context.Context, h *scenario.Harness, env *scenario.Env) error {
	return nil
}

func checkDemocracy(ctx context.Context, h *scenario.Harness, env *scenario.Env) error {
	democracy, err := env.Contract("democracy")
	if err != nil {
		return err
	}

	balance := h.BalanceOf(democracy.Address)
	return scenario.Assertf(balance.IsZero(), "Democracy still holds %s ether", utils.FormatEther(balance))
}

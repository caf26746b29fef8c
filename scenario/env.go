package scenario

import (
	"github.com/crytic/chainfixture/chain"
	"github.com/crytic/chainfixture/compilation/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/pkg/errors"
)

// DeployedContract is a contract deployed by a scenario's setup.
type DeployedContract struct {
	// Address is where the contract was deployed.
	Address common.Address

	// Contract is the artifact the contract was deployed from.
	Contract *types.CompiledContract
}

// Env describes what a scenario's setup provisioned. An Env is cached with its fixture and shared by every run of
// the scenario, so the exploit and check phases must treat it as read-only.
type Env struct {
	// Contracts maps the names setup chose to the contracts it deployed.
	Contracts map[string]DeployedContract

	// Deployer is the account that deployed the contracts.
	Deployer chain.Account

	// Player is the account the exploit acts as.
	Player chain.Account
}

// NewEnv creates an empty Env for the given deployer and player.
func NewEnv(deployer chain.Account, player chain.Account) *Env {
	return &Env{
		Contracts: make(map[string]DeployedContract),
		Deployer:  deployer,
		Player:    player,
	}
}

// Contract returns the deployed contract recorded under name.
func (e *Env) Contract(name string) (DeployedContract, error) {
	deployed, ok := e.Contracts[name]
	if !ok {
		return DeployedContract{}, errors.Errorf("no contract named %s was deployed by setup", name)
	}
	return deployed, nil
}

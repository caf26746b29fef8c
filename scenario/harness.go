package scenario

import (
	"math/big"

	"github.com/crytic/chainfixture/chain"
	chainTypes "github.com/crytic/chainfixture/chain/types"
	"github.com/crytic/chainfixture/compilation"
	"github.com/crytic/chainfixture/compilation/abiutils"
	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/utils"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Harness bundles the chain scenarios run against with the accounts and contract artifacts they use.
type Harness struct {
	// Chain is the chain every scenario of the harness runs against.
	Chain *chain.TestChain

	// Accounts are the accounts funded at genesis.
	Accounts []chain.Account

	// Deployer is the account that deploys challenge contracts.
	Deployer chain.Account

	// Player is the account exploits act as.
	Player chain.Account

	// Artifacts loads contract artifacts for setups.
	Artifacts *compilation.ArtifactLoader

	// logger describes the harness' sub-logger
	logger *logging.Logger
}

// NewHarness creates a chain funding the configured accounts and an artifact loader over the configured contracts
// directory.
func NewHarness(projectConfig *configs.ProjectConfig) (*Harness, error) {
	if err := projectConfig.Validate(); err != nil {
		return nil, err
	}

	artifacts, err := compilation.NewArtifactLoader(
		projectConfig.Challenges.ContractsDirectory,
		projectConfig.Challenges.CompilerVersionConstraint,
	)
	if err != nil {
		return nil, err
	}

	chainConfig := projectConfig.Chain
	testChain, accounts, err := chain.NewTestChainWithAccounts(&chainConfig)
	if err != nil {
		return nil, err
	}

	return &Harness{
		Chain:     testChain,
		Accounts:  accounts,
		Deployer:  accounts[projectConfig.Challenges.DeployerAccountIndex],
		Player:    accounts[projectConfig.Challenges.PlayerAccountIndex],
		Artifacts: artifacts,
		logger:    logging.GlobalLogger.NewSubLogger("module", logging.SCENARIO_SERVICE),
	}, nil
}

// Close releases the harness' chain.
func (h *Harness) Close() {
	h.Chain.Close()
}

// Deploy loads the named artifact and deploys it from the given account with constructor arguments.
func (h *Harness) Deploy(from common.Address, name string, value *big.Int, args ...any) (DeployedContract, error) {
	contract, err := h.Artifacts.Load(name)
	if err != nil {
		return DeployedContract{}, err
	}

	data, err := contract.GetDeploymentMessageData(args...)
	if err != nil {
		return DeployedContract{}, err
	}

	result, err := h.Chain.SendMessage(h.Chain.NewMessage(from, nil, value, data))
	if err != nil {
		return DeployedContract{}, describeFailure(err, result, &contract.Abi, "deployment of "+name)
	}

	h.logger.Debug("Deployed ", name, " at ", utils.ShortAddress(*result.ContractAddress), logging.StructuredLogInfo{
		"address":  result.ContractAddress.Hex(),
		"deployer": from.Hex(),
		"value":    utils.WeiToEther(value).String(),
	})
	return DeployedContract{Address: *result.ContractAddress, Contract: contract}, nil
}

// Transact mines a call to a method of a deployed contract from the given account.
func (h *Harness) Transact(from common.Address, deployed DeployedContract, value *big.Int, method string, args ...any) error {
	data, err := deployed.Contract.PackCall(method, args...)
	if err != nil {
		return err
	}

	result, err := h.Chain.Transact(from, deployed.Address, value, data)
	if err != nil {
		return describeFailure(err, result, &deployed.Contract.Abi, deployed.Contract.Name+"."+method)
	}
	return nil
}

// Call executes a method of a deployed contract without persisting changes and returns its decoded outputs.
func (h *Harness) Call(from common.Address, deployed DeployedContract, method string, args ...any) ([]any, error) {
	data, err := deployed.Contract.PackCall(method, args...)
	if err != nil {
		return nil, err
	}

	returnData, err := h.Chain.Call(from, deployed.Address, data)
	if err != nil {
		var reason string
		if errors.Is(err, chain.ErrExecutionReverted) {
			reason = abiutils.DescribeRevert(&deployed.Contract.Abi, vm.ErrExecutionReverted, returnData)
		}
		if reason == "" {
			return nil, errors.Wrapf(err, "call to %s.%s failed", deployed.Contract.Name, method)
		}
		return nil, errors.Wrapf(err, "call to %s.%s failed: %s", deployed.Contract.Name, method, reason)
	}
	return deployed.Contract.UnpackResult(method, returnData)
}

// BalanceOf returns the ether balance of an address.
func (h *Harness) BalanceOf(address common.Address) *uint256.Int {
	return h.Chain.BalanceAt(address)
}

// describeFailure annotates a failed message with its decoded revert reason, if it carries one.
func describeFailure(err error, result *chainTypes.MessageResults, contractAbi *abi.ABI, action string) error {
	if result == nil || result.ExecutionResult == nil {
		return errors.Wrapf(err, "%s failed", action)
	}

	reason := abiutils.DescribeRevert(contractAbi, result.ExecutionResult.Err, result.ExecutionResult.Revert())
	if reason == "" {
		return errors.Wrapf(err, "%s failed", action)
	}
	return errors.Wrapf(err, "%s failed: %s", action, reason)
}

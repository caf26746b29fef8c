package config

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/pkg/errors"
)

// TestChainConfig represents the chain configuration.
type TestChainConfig struct {
	// CodeSizeCheckDisabled indicates whether code size checks should be disabled in the EVM. This allows challenge
	// contracts beyond the EIP-170 limit to be deployed without disabling the rest of the EIP.
	CodeSizeCheckDisabled bool `json:"codeSizeCheckDisabled"`

	// BlockGasLimit describes the maximum amount of gas that can be used in a block by transactions.
	BlockGasLimit uint64 `json:"blockGasLimit"`

	// TransactionGasLimit describes the gas limit given to messages built by the chain's automine helpers.
	TransactionGasLimit uint64 `json:"transactionGasLimit"`

	// MaxSnapshots bounds how many snapshots the chain retains. When exceeded, the oldest snapshot is evicted and
	// reverting to it fails with ErrInvalidSnapshot. Zero means unlimited.
	MaxSnapshots int `json:"maxSnapshots"`

	// Accounts describes the deterministic, pre-funded accounts created at genesis.
	Accounts AccountsConfig `json:"accounts"`

	// ContractAddressOverrides describes contracts that are going to be deployed at deterministic addresses, keyed
	// by the hash of their init bytecode.
	ContractAddressOverrides map[common.Hash]common.Address `json:"contractAddressOverrides,omitempty"`
}

// AccountsConfig describes the accounts funded at genesis, the equivalent of a development node's signers.
type AccountsConfig struct {
	// Count is the number of accounts to derive.
	Count int `json:"count"`

	// BalanceEther is the genesis balance of each account, in whole ether.
	BalanceEther uint64 `json:"balanceEther"`
}

// GetVMConfigExtensions derives a vm.ConfigExtensions from the provided TestChainConfig.
func (t *TestChainConfig) GetVMConfigExtensions() *vm.ConfigExtensions {
	// medusa-geth may update overrides ephemerally, so it gets its own copy
	contractAddressOverrides := make(map[common.Hash]common.Address, len(t.ContractAddressOverrides))
	for hash, addr := range t.ContractAddressOverrides {
		contractAddressOverrides[hash] = addr
	}

	return &vm.ConfigExtensions{
		OverrideCodeSizeCheck:    t.CodeSizeCheckDisabled,
		AdditionalPrecompiles:    make(map[common.Address]vm.PrecompiledContract),
		ContractAddressOverrides: contractAddressOverrides,
	}
}

// Validate verifies the TestChainConfig is usable.
func (t *TestChainConfig) Validate() error {
	if t.BlockGasLimit == 0 || t.TransactionGasLimit == 0 {
		return errors.Errorf("block and transaction gas limit cannot be zero")
	}
	if t.BlockGasLimit < t.TransactionGasLimit {
		return errors.Errorf("block gas limit cannot be less than transaction gas limit")
	}
	if t.MaxSnapshots < 0 {
		return errors.Errorf("max snapshots cannot be negative")
	}
	if t.Accounts.Count <= 0 {
		return errors.Errorf("at least one genesis account is required")
	}
	return nil
}

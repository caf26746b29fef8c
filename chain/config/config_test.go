package config

import (
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/stretchr/testify/assert"
)

// TestDefaultTestChainConfigIsValid ensures the defaults pass validation.
func TestDefaultTestChainConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultTestChainConfig().Validate())
}

// TestValidate checks each validation rule in isolation.
func TestValidate(t *testing.T) {
	cases := map[string]func(c *TestChainConfig){
		"zero block gas":         func(c *TestChainConfig) { c.BlockGasLimit = 0 },
		"tx gas exceeds block":   func(c *TestChainConfig) { c.TransactionGasLimit = c.BlockGasLimit + 1 },
		"negative max snapshots": func(c *TestChainConfig) { c.MaxSnapshots = -1 },
		"no accounts":            func(c *TestChainConfig) { c.Accounts.Count = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultTestChainConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

// TestGetVMConfigExtensionsCopiesOverrides ensures the VM receives its own copy of the address overrides.
func TestGetVMConfigExtensionsCopiesOverrides(t *testing.T) {
	c := DefaultTestChainConfig()
	c.ContractAddressOverrides = map[common.Hash]common.Address{
		common.HexToHash("0x01"): common.HexToAddress("0x1234"),
	}

	extensions := c.GetVMConfigExtensions()
	assert.True(t, extensions.OverrideCodeSizeCheck)
	assert.Equal(t, c.ContractAddressOverrides, extensions.ContractAddressOverrides)

	extensions.ContractAddressOverrides[common.HexToHash("0x02")] = common.HexToAddress("0x5678")
	assert.Len(t, c.ContractAddressOverrides, 1)
}

package config

// DefaultTestChainConfig obtains a default configuration for a chain.TestChain.
func DefaultTestChainConfig() *TestChainConfig {
	return &TestChainConfig{
		CodeSizeCheckDisabled: true,
		BlockGasLimit:         125_000_000,
		TransactionGasLimit:   12_500_000,
		MaxSnapshots:          0,
		Accounts: AccountsConfig{
			Count:        20,
			BalanceEther: 10_000,
		},
	}
}

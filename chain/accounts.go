package chain

import (
	"crypto/ecdsa"
	"encoding/binary"
	"math/big"

	"github.com/crytic/chainfixture/chain/config"
	"github.com/crytic/chainfixture/utils"
	"github.com/crytic/medusa-geth/common"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/shopspring/decimal"
)

// accountSeed is hashed together with an account index to derive deterministic private keys.
var accountSeed = []byte("chainfixture account")

// Account is an externally owned account funded at genesis.
type Account struct {
	// Address is the account's address.
	Address common.Address

	// Key is the account's private key.
	Key *ecdsa.PrivateKey
}

// NewAccounts derives count deterministic accounts. The same index always yields the same key, so challenge
// scenarios see stable deployer and player addresses across runs.
func NewAccounts(count int) ([]Account, error) {
	accounts := make([]Account, count)
	for i := 0; i < count; i++ {
		index := make([]byte, 8)
		binary.BigEndian.PutUint64(index, uint64(i))

		key, err := crypto.ToECDSA(crypto.Keccak256(accountSeed, index))
		if err != nil {
			return nil, err
		}
		accounts[i] = Account{
			Address: crypto.PubkeyToAddress(key.PublicKey),
			Key:     key,
		}
	}
	return accounts, nil
}

// GenesisAllocForAccounts funds each account with the given amount of ether at genesis.
func GenesisAllocForAccounts(accounts []Account, balanceEther uint64) gethTypes.GenesisAlloc {
	balance := utils.EtherToWei(decimal.NewFromUint64(balanceEther))

	genesisAlloc := make(gethTypes.GenesisAlloc, len(accounts))
	for _, account := range accounts {
		genesisAlloc[account.Address] = gethTypes.Account{
			Balance: new(big.Int).Set(balance),
		}
	}
	return genesisAlloc
}

// NewTestChainWithAccounts creates a TestChain whose genesis funds the accounts described by the chain config, and
// returns both. If a nil config is provided, a default one is used.
func NewTestChainWithAccounts(testChainConfig *config.TestChainConfig) (*TestChain, []Account, error) {
	if testChainConfig == nil {
		testChainConfig = config.DefaultTestChainConfig()
	}

	accounts, err := NewAccounts(testChainConfig.Accounts.Count)
	if err != nil {
		return nil, nil, err
	}

	chain, err := NewTestChain(GenesisAllocForAccounts(accounts, testChainConfig.Accounts.BalanceEther), testChainConfig)
	if err != nil {
		return nil, nil, err
	}
	return chain, accounts, nil
}

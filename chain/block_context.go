package chain

import (
	"math/big"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
)

// newBlockContext builds the vm.BlockContext for executing messages on top of header. BLOCKHASH lookups go through
// getHash.
func newBlockContext(header *types.Header, getHash vm.GetHashFunc) vm.BlockContext {
	random := header.MixDigest
	return vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     getHash,
		Coinbase:    header.Coinbase,
		GasLimit:    header.GasLimit,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int).Set(header.Difficulty),
		BaseFee:     new(big.Int).Set(header.BaseFee),
		BlobBaseFee: big.NewInt(0),
		Random:      &random,
	}
}

// blockHashOrZero resolves a BLOCKHASH lookup against the committed blocks. Unknown block numbers yield the zero
// hash, the same as blocks older than 256 on a real node.
func (t *TestChain) blockHashOrZero(blockNumber uint64) common.Hash {
	hash, err := t.BlockHashFromNumber(blockNumber)
	if err != nil {
		return common.Hash{}
	}
	return hash
}

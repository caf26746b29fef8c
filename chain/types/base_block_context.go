package types

import (
	"math/big"

	"github.com/crytic/medusa-geth/common"
)

// BaseBlockContext stores the block-level values (block.number, block.timestamp, ...) a block was created with, so
// a block can be re-created with identical execution semantics.
type BaseBlockContext struct {
	// Number represents the block number of the block when it was first created.
	Number *big.Int
	// Time represents the timestamp of the block when it was first created.
	Time uint64
	// BaseFee represents the base fee of the block when it was first created.
	BaseFee *big.Int
	// Coinbase represents the coinbase of the block when it was first created.
	Coinbase common.Address
}

// NewBaseBlockContext returns a new BaseBlockContext with the provided parameters. A nil base fee is treated as
// zero.
func NewBaseBlockContext(number uint64, time uint64, baseFee *big.Int, coinbase common.Address) *BaseBlockContext {
	if baseFee == nil {
		baseFee = common.Big0
	}
	return &BaseBlockContext{
		Number:   new(big.Int).SetUint64(number),
		Time:     time,
		BaseFee:  new(big.Int).Set(baseFee),
		Coinbase: coinbase,
	}
}

package types

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	gethTypes "github.com/crytic/medusa-geth/core/types"
)

// Block represents a block committed to (or pending on) a chain.TestChain. Messages are unsigned, so a Block does
// not track signed transactions.
type Block struct {
	// Hash represents the block hash for this block.
	Hash common.Hash

	// Header represents the block header for this block.
	Header *gethTypes.Header

	// BaseContext holds the block number, time, base fee and coinbase the block was created with.
	BaseContext *BaseBlockContext

	// Messages represents the core.Message objects executed by this block.
	Messages []*core.Message

	// MessageResults represents the results recorded while executing Messages. The indexes line up with Messages.
	MessageResults []*MessageResults
}

// NewBlock returns a new Block with the provided header and no messages.
func NewBlock(header *gethTypes.Header) *Block {
	return &Block{
		Hash:           header.Hash(),
		Header:         header,
		BaseContext:    NewBaseBlockContext(header.Number.Uint64(), header.Time, header.BaseFee, header.Coinbase),
		Messages:       make([]*core.Message, 0),
		MessageResults: make([]*MessageResults, 0),
	}
}

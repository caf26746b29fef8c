package types

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	gethTypes "github.com/crytic/medusa-geth/core/types"
)

// MessageResults represents metadata obtained from the execution of a message in a Block.
type MessageResults struct {
	// TxHash is the hash of the transaction derived from the message.
	TxHash common.Hash

	// ExecutionResult describes the core.ExecutionResult returned after processing the message.
	ExecutionResult *core.ExecutionResult

	// Receipt represents the transaction receipt.
	Receipt *gethTypes.Receipt

	// ContractAddress is the address of the contract created by the message, or nil if the message was a call.
	ContractAddress *common.Address
}

// Failed reports whether the EVM reverted or otherwise failed while executing the message.
func (m *MessageResults) Failed() bool {
	return m.ExecutionResult != nil && m.ExecutionResult.Failed()
}

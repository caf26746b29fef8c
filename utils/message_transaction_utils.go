package utils

import (
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/types"
)

// MessageToTransaction derives an unsigned types.Transaction from a core.Message, used to hash messages and build
// receipts on chains which never sign anything.
func MessageToTransaction(msg *core.Message) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    msg.Nonce,
		GasPrice: msg.GasPrice,
		Gas:      msg.GasLimit,
		To:       msg.To,
		Value:    msg.Value,
		Data:     msg.Data,
		// The sender goes into a signature value, otherwise identical messages from two accounts share a hash.
		S: msg.From.Big(),
	})
}

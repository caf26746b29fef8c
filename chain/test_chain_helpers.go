package chain

import (
	"fmt"
	"math/big"

	"github.com/crytic/chainfixture/chain/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/holiman/uint256"
)

// NewMessage builds a message from the given sender using the sender's current nonce and the configured
// transaction gas limit. A nil to creates a contract with data as its init bytecode.
func (t *TestChain) NewMessage(from common.Address, to *common.Address, value *big.Int, data []byte) *core.Message {
	if value == nil {
		value = new(big.Int)
	}
	return &core.Message{
		To:         to,
		From:       from,
		Nonce:      t.state.GetNonce(from),
		Value:      new(big.Int).Set(value),
		GasLimit:   t.testChainConfig.TransactionGasLimit,
		GasPrice:   big.NewInt(1),
		GasFeeCap:  big.NewInt(0),
		GasTipCap:  big.NewInt(0),
		Data:       data,
		AccessList: nil,
	}
}

// SendMessage mines the message in a block of its own, the way a development node with automine would. If the EVM
// fails the message, the block is still committed and the returned error wraps ErrExecutionReverted. Invalid
// messages (bad nonce, insufficient funds) discard the block and return the validation error.
func (t *TestChain) SendMessage(message *core.Message) (*types.MessageResults, error) {
	if _, err := t.PendingBlockCreate(); err != nil {
		return nil, err
	}

	result, err := t.PendingBlockAddTx(message)
	if err != nil {
		if discardErr := t.PendingBlockDiscard(); discardErr != nil {
			return nil, discardErr
		}
		return nil, err
	}

	if err = t.PendingBlockCommit(); err != nil {
		return nil, err
	}

	if result.Failed() {
		return result, fmt.Errorf("%w: %v", ErrExecutionReverted, result.ExecutionResult.Err)
	}
	return result, nil
}

// DeployContract deploys init bytecode from the given sender, endowing the contract with value, and returns the
// address the contract was created at.
func (t *TestChain) DeployContract(from common.Address, initBytecode []byte, value *big.Int) (common.Address, error) {
	result, err := t.SendMessage(t.NewMessage(from, nil, value, initBytecode))
	if err != nil {
		return common.Address{}, err
	}
	return *result.ContractAddress, nil
}

// Transact sends calldata with value to a contract (or an account) from the given sender and mines it.
func (t *TestChain) Transact(from common.Address, to common.Address, value *big.Int, data []byte) (*types.MessageResults, error) {
	return t.SendMessage(t.NewMessage(from, &to, value, data))
}

// Transfer sends value from one account to another and mines it.
func (t *TestChain) Transfer(from common.Address, to common.Address, value *big.Int) error {
	_, err := t.Transact(from, to, value, nil)
	return err
}

// Call executes calldata against a contract without persisting any changes and returns the return data. If the call
// reverts, the returned error wraps ErrExecutionReverted.
func (t *TestChain) Call(from common.Address, to common.Address, data []byte) ([]byte, error) {
	result, err := t.CallContract(t.NewMessage(from, &to, nil, data), nil)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return result.Revert(), fmt.Errorf("%w: %v", ErrExecutionReverted, result.Err)
	}
	return result.ReturnData, nil
}

// BalanceAt returns the ether balance of an address in the current state.
func (t *TestChain) BalanceAt(address common.Address) *uint256.Int {
	return t.state.GetBalance(address)
}

// NonceAt returns the nonce of an address in the current state.
func (t *TestChain) NonceAt(address common.Address) uint64 {
	return t.state.GetNonce(address)
}

// CodeAt returns the code deployed at an address in the current state.
func (t *TestChain) CodeAt(address common.Address) []byte {
	return t.state.GetCode(address)
}

// StorageAt returns the value of a storage slot of an address in the current state.
func (t *TestChain) StorageAt(address common.Address, slot common.Hash) common.Hash {
	return t.state.GetState(address, slot)
}

package chain

import "errors"

var (
	// ErrInvalidSnapshot is returned when reverting to a snapshot the chain does not know about, either because it
	// was never issued by this chain, was deleted, or was evicted.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrExecutionReverted is returned by the automine helpers when the EVM reverts or fails a message. The message
	// is still mined, as it would be on a development node.
	ErrExecutionReverted = errors.New("execution reverted")
)

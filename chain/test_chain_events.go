package chain

import (
	"github.com/crytic/chainfixture/chain/types"
	"github.com/crytic/chainfixture/events"
)

// TestChainEvents defines the event emitters for a TestChain.
type TestChainEvents struct {
	// PendingBlockCommitted emits events when a pending block is committed as the chain head.
	PendingBlockCommitted events.EventEmitter[PendingBlockCommittedEvent]

	// BlocksRemoved emits events when committed blocks are removed by a revert.
	BlocksRemoved events.EventEmitter[BlocksRemovedEvent]

	// SnapshotTaken emits events when a snapshot of the chain is recorded.
	SnapshotTaken events.EventEmitter[SnapshotTakenEvent]

	// SnapshotReverted emits events after the chain has been restored to a snapshot.
	SnapshotReverted events.EventEmitter[SnapshotRevertedEvent]
}

// PendingBlockCommittedEvent describes a pending block being committed to the chain as the new head.
type PendingBlockCommittedEvent struct {
	// Chain refers to the TestChain which emitted the event.
	Chain *TestChain

	// Block refers to the block that was committed.
	Block *types.Block
}

// BlocksRemovedEvent describes committed blocks being removed from the chain.
type BlocksRemovedEvent struct {
	// Chain refers to the TestChain which emitted the event.
	Chain *TestChain

	// Blocks refers to the blocks removed from the chain, in the order they were committed.
	Blocks []*types.Block
}

// SnapshotTakenEvent describes a snapshot being recorded.
type SnapshotTakenEvent struct {
	// Chain refers to the TestChain which emitted the event.
	Chain *TestChain

	// SnapshotID is the identifier issued for the snapshot.
	SnapshotID SnapshotID

	// BlockNumber is the head block number at the time of the snapshot.
	BlockNumber uint64
}

// SnapshotRevertedEvent describes the chain being restored to a snapshot.
type SnapshotRevertedEvent struct {
	// Chain refers to the TestChain which emitted the event.
	Chain *TestChain

	// SnapshotID is the identifier of the snapshot reverted to.
	SnapshotID SnapshotID

	// BlockNumber is the head block number after the revert.
	BlockNumber uint64
}

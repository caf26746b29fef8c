package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/crytic/chainfixture/chain/types"
	"github.com/crytic/chainfixture/logging"
	"github.com/google/uuid"
)

// SnapshotID is an opaque handle to a point-in-time chain state issued by TestChain.Snapshot. IDs are random, so a
// handle issued by one chain is never valid on another.
type SnapshotID string

// String returns the string representation of the SnapshotID.
func (s SnapshotID) String() string {
	return string(s)
}

// chainSnapshot is the committed block list captured by a snapshot. Committed blocks are never mutated, so sharing
// the block pointers with the live chain is safe.
type chainSnapshot struct {
	id      SnapshotID
	blocks  []*types.Block
	takenAt time.Time
}

// snapshotRegistry stores snapshots in the order they were taken, evicting the oldest once maxSnapshots is exceeded.
type snapshotRegistry struct {
	snapshots    map[SnapshotID]*chainSnapshot
	order        []SnapshotID
	maxSnapshots int
	lock         sync.Mutex
}

// newSnapshotRegistry creates a registry bounded by maxSnapshots, where zero means unbounded.
func newSnapshotRegistry(maxSnapshots int) *snapshotRegistry {
	return &snapshotRegistry{
		snapshots:    make(map[SnapshotID]*chainSnapshot),
		order:        make([]SnapshotID, 0),
		maxSnapshots: maxSnapshots,
	}
}

// add records a snapshot and returns the ID of any evicted snapshot, or an empty ID.
func (r *snapshotRegistry) add(snapshot *chainSnapshot) SnapshotID {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.snapshots[snapshot.id] = snapshot
	r.order = append(r.order, snapshot.id)

	if r.maxSnapshots > 0 && len(r.order) > r.maxSnapshots {
		evicted := r.order[0]
		r.order = r.order[1:]
		delete(r.snapshots, evicted)
		return evicted
	}
	return ""
}

// get returns the snapshot with the given ID.
func (r *snapshotRegistry) get(id SnapshotID) (*chainSnapshot, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	snapshot, ok := r.snapshots[id]
	return snapshot, ok
}

// remove deletes the snapshot with the given ID and reports whether it existed.
func (r *snapshotRegistry) remove(id SnapshotID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.snapshots[id]; !ok {
		return false
	}
	delete(r.snapshots, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// clear deletes every snapshot.
func (r *snapshotRegistry) clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.snapshots = make(map[SnapshotID]*chainSnapshot)
	r.order = r.order[:0]
}

// len returns the number of retained snapshots.
func (r *snapshotRegistry) len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.order)
}

// Snapshot records the current committed chain state and returns a handle to it. Any pending block is discarded
// first, so the snapshot only ever captures committed state.
//
// Snapshots are persistent: reverting to a snapshot does not consume it, and reverting to one snapshot never
// invalidates another, regardless of the order they were taken in.
func (t *TestChain) Snapshot() (SnapshotID, error) {
	if err := t.PendingBlockDiscard(); err != nil {
		return "", err
	}

	snapshot := &chainSnapshot{
		id:      SnapshotID(uuid.NewString()),
		blocks:  append([]*types.Block(nil), t.blocks...),
		takenAt: time.Now(),
	}
	if evicted := t.snapshots.add(snapshot); evicted != "" {
		t.logger.Debug("Evicted snapshot ", evicted, " as the snapshot limit was reached")
	}

	t.logger.Trace("Took snapshot ", snapshot.id, " at block ", t.HeadBlockNumber())
	err := t.Events.SnapshotTaken.Publish(SnapshotTakenEvent{
		Chain:       t,
		SnapshotID:  snapshot.id,
		BlockNumber: t.HeadBlockNumber(),
	})
	if err != nil {
		return "", err
	}
	return snapshot.id, nil
}

// RevertToSnapshot restores the chain to the exact committed state captured by the given snapshot, discarding any
// pending block. It returns an error wrapping ErrInvalidSnapshot if the snapshot is unknown to this chain.
func (t *TestChain) RevertToSnapshot(id SnapshotID) error {
	snapshot, ok := t.snapshots.get(id)
	if !ok {
		return fmt.Errorf("%w: %q is not known to this chain", ErrInvalidSnapshot, id)
	}

	if err := t.PendingBlockDiscard(); err != nil {
		return err
	}

	// Blocks past the common prefix of the current chain and the snapshot are removed.
	shared := 0
	for shared < len(t.blocks) && shared < len(snapshot.blocks) && t.blocks[shared] == snapshot.blocks[shared] {
		shared++
	}
	removedBlocks := append([]*types.Block(nil), t.blocks[shared:]...)

	t.blocks = append([]*types.Block(nil), snapshot.blocks...)
	if err := t.reloadHeadState(removedBlocks); err != nil {
		return err
	}

	t.logger.Trace("Reverted to snapshot ", id, " at block ", t.HeadBlockNumber(), logging.StructuredLogInfo{
		"removedBlocks": len(removedBlocks),
		"snapshotAge":   time.Since(snapshot.takenAt).String(),
	})
	return t.Events.SnapshotReverted.Publish(SnapshotRevertedEvent{
		Chain:       t,
		SnapshotID:  id,
		BlockNumber: t.HeadBlockNumber(),
	})
}

// DeleteSnapshot releases a snapshot. Deleting an unknown snapshot returns an error wrapping ErrInvalidSnapshot.
func (t *TestChain) DeleteSnapshot(id SnapshotID) error {
	if !t.snapshots.remove(id) {
		return fmt.Errorf("%w: %q is not known to this chain", ErrInvalidSnapshot, id)
	}
	return nil
}

// ClearSnapshots releases every snapshot recorded on this chain.
func (t *TestChain) ClearSnapshots() {
	t.snapshots.clear()
}

// SnapshotCount returns the number of snapshots currently retained by the chain.
func (t *TestChain) SnapshotCount() int {
	return t.snapshots.len()
}

package fixture

import (
	"context"
	"sync"
	"time"

	"github.com/crytic/chainfixture/chain"
	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/utils"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Backend is the chain control surface a Cache drives. *chain.TestChain satisfies it.
type Backend interface {
	// Snapshot records the current chain state and returns a handle to it.
	Snapshot() (chain.SnapshotID, error)

	// RevertToSnapshot restores the chain state recorded by Snapshot. Reverting must not invalidate the snapshot.
	RevertToSnapshot(id chain.SnapshotID) error
}

// snapshotDeleter is implemented by backends which can release snapshots the cache no longer references.
type snapshotDeleter interface {
	DeleteSnapshot(id chain.SnapshotID) error
}

// cacheEntry records the outcome of a fixture's first successful setup.
type cacheEntry struct {
	// result is the value the setup procedure returned.
	result any

	// snapshotID is the snapshot taken right after setup completed.
	snapshotID chain.SnapshotID

	// fixtureName is the name of the fixture, for logging.
	fixtureName string

	// createdAt is the time the entry was stored.
	createdAt time.Time
}

// Cache runs each fixture's setup procedure once and restores the resulting chain state on every later load.
// A Cache is bound to a single Backend; snapshots issued by one chain are meaningless to another.
type Cache struct {
	// backend is the chain the cache snapshots and reverts.
	backend Backend

	// config describes how the cache handles snapshots the backend rejects.
	config configs.FixtureConfig

	// entries maps fixture IDs to their cached setup outcome.
	entries map[string]*cacheEntry

	// entriesLock guards entries.
	entriesLock sync.RWMutex

	// stateLock is held by a load from its restore or setup until the chain is in the fixture's state, so no
	// other load of this cache moves the chain underneath a running setup. Nested loads run under the holder's lock.
	stateLock sync.Mutex

	// backendLock serializes every snapshot, revert and delete the cache issues. It is acquired after stateLock.
	backendLock sync.Mutex

	// inflight collapses concurrent loads of the same fixture into one restore or setup.
	inflight singleflight.Group

	// logger describes the cache's sub-logger
	logger *logging.Logger
}

// NewCache creates an empty Cache driving the provided backend.
func NewCache(backend Backend, config configs.FixtureConfig) *Cache {
	return &Cache{
		backend: backend,
		config:  config,
		entries: make(map[string]*cacheEntry),
		logger:  logging.GlobalLogger.NewSubLogger("module", logging.FIXTURE_SERVICE),
	}
}

// Load returns the result of the fixture's setup procedure with the chain in the state the procedure left it in.
//
// The first load of a fixture runs its setup procedure and snapshots the chain. Every later load reverts the chain
// to that snapshot and returns the stored result without running setup again. Setup, snapshot and revert errors are
// returned unmodified and nothing is cached, so the next load runs setup again. If the cache is configured to retry
// on invalid snapshots, a revert rejected with chain.ErrInvalidSnapshot instead drops the entry and runs setup once
// more.
//
// Loads are serialized per cache: a setup procedure runs to its snapshot without any other load of the same cache
// touching the chain. A setup procedure may load other fixtures of the same cache with the context it was given.
func Load[T any](ctx context.Context, cache *Cache, f *Fixture[T]) (T, error) {
	var zero T
	result, err := cache.load(ctx, f, func(ctx context.Context) (any, error) {
		return f.setup(ctx)
	})
	if err != nil {
		return zero, err
	}

	// A nil interface result is stored as a nil any
	typed, _ := result.(T)
	return typed, nil
}

// stateLockKey marks a context whose goroutine holds a cache's stateLock. Its value is the *Cache.
type stateLockKey struct{}

// holdsStateLock reports whether ctx was handed out by this cache while it held stateLock.
func (c *Cache) holdsStateLock(ctx context.Context) bool {
	holder, _ := ctx.Value(stateLockKey{}).(*Cache)
	return holder == c
}

// load implements Load over untyped results.
func (c *Cache) load(ctx context.Context, f Handle, setup func(ctx context.Context) (any, error)) (any, error) {
	if err := utils.ContextDoneError(ctx, "loading fixture "+f.Name()); err != nil {
		return nil, err
	}

	// Nested loads already own the chain.
	if c.holdsStateLock(ctx) {
		return c.loadLocked(ctx, f, setup)
	}

	for {
		// Concurrent loads of one fixture share a single restore or setup.
		leader := false
		value, err, _ := c.inflight.Do(f.ID(), func() (any, error) {
			leader = true
			c.stateLock.Lock()
			defer c.stateLock.Unlock()
			return c.loadLocked(context.WithValue(ctx, stateLockKey{}, c), f, setup)
		})
		if err == nil {
			return value, nil
		}

		// The shared call ran under another caller's context. If that caller went away, try again under ours.
		cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		if !leader && cancelled && ctx.Err() == nil {
			c.logger.Debug("Load of fixture ", f.Name(), " was cancelled by another caller, retrying")
			continue
		}
		return nil, err
	}
}

// loadLocked restores a fixture's entry, or runs its setup if it has none. The caller must hold stateLock.
func (c *Cache) loadLocked(ctx context.Context, f Handle, setup func(ctx context.Context) (any, error)) (any, error) {
	if entry, ok := c.entry(f.ID()); ok {
		err := c.restore(entry)
		if err == nil {
			c.logger.Debug("Restored fixture ", f.Name(), " from snapshot ", entry.snapshotID, logging.StructuredLogInfo{
				"age": time.Since(entry.createdAt).String(),
			})
			return entry.result, nil
		}
		if !c.config.RetryOnInvalidSnapshot || !errors.Is(err, chain.ErrInvalidSnapshot) {
			c.logger.Debug("Could not restore fixture ", f.Name(), logging.StructuredLogInfo{
				"snapshot": entry.snapshotID.String(),
			}, err)
			return nil, err
		}

		c.logger.Warn("Snapshot of fixture ", f.Name(), " is no longer valid, setting it up again")
		c.drop(f.ID(), entry)
	}

	entry, err := c.setup(ctx, f, setup)
	if err != nil {
		return nil, err
	}
	return entry.result, nil
}

// setup runs a fixture's setup procedure, snapshots the resulting state and stores the entry. The caller must hold
// stateLock.
func (c *Cache) setup(ctx context.Context, f Handle, setup func(ctx context.Context) (any, error)) (*cacheEntry, error) {
	c.logger.Debug("Running setup of fixture ", f.Name())
	start := time.Now()
	result, err := setup(ctx)
	if err != nil {
		return nil, err
	}

	c.backendLock.Lock()
	snapshotID, err := c.backend.Snapshot()
	c.backendLock.Unlock()
	if err != nil {
		c.logger.Debug("Could not snapshot fixture ", f.Name(), err)
		return nil, err
	}

	entry := &cacheEntry{
		result:      result,
		snapshotID:  snapshotID,
		fixtureName: f.Name(),
		createdAt:   time.Now(),
	}
	c.entriesLock.Lock()
	c.entries[f.ID()] = entry
	c.entriesLock.Unlock()

	c.logger.Debug("Cached fixture ", f.Name(), " as snapshot ", snapshotID, logging.StructuredLogInfo{
		"setupDuration": entry.createdAt.Sub(start).String(),
	})
	return entry, nil
}

// restore reverts the backend to an entry's snapshot.
func (c *Cache) restore(entry *cacheEntry) error {
	c.backendLock.Lock()
	defer c.backendLock.Unlock()
	return c.backend.RevertToSnapshot(entry.snapshotID)
}

// entry returns the cached entry for a fixture ID.
func (c *Cache) entry(id string) (*cacheEntry, bool) {
	c.entriesLock.RLock()
	defer c.entriesLock.RUnlock()
	entry, ok := c.entries[id]
	return entry, ok
}

// drop removes a fixture's entry if it is still the given entry, and releases its snapshot.
func (c *Cache) drop(id string, entry *cacheEntry) bool {
	c.entriesLock.Lock()
	current, ok := c.entries[id]
	if !ok || current != entry {
		c.entriesLock.Unlock()
		return false
	}
	delete(c.entries, id)
	c.entriesLock.Unlock()

	c.release(entry)
	return true
}

// release deletes an entry's snapshot if the backend supports it.
func (c *Cache) release(entry *cacheEntry) {
	deleter, ok := c.backend.(snapshotDeleter)
	if !ok {
		return
	}

	c.backendLock.Lock()
	err := deleter.DeleteSnapshot(entry.snapshotID)
	c.backendLock.Unlock()
	if err != nil {
		c.logger.Debug("Could not release snapshot of fixture ", entry.fixtureName, logging.StructuredLogInfo{
			"snapshot": entry.snapshotID.String(),
		}, err)
	}
}

// Forget drops the cached entry of a fixture, so its next load runs setup again. Returns whether an entry existed.
func (c *Cache) Forget(f Handle) bool {
	entry, ok := c.entry(f.ID())
	if !ok {
		return false
	}
	return c.drop(f.ID(), entry)
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.entriesLock.Lock()
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.entriesLock.Unlock()

	for _, entry := range entries {
		c.release(entry)
	}
	c.logger.Debug("Cleared ", len(entries), " cached fixtures")
}

// Cached reports whether the fixture has a cached entry.
func (c *Cache) Cached(f Handle) bool {
	_, ok := c.entry(f.ID())
	return ok
}

// Len returns the number of cached fixtures.
func (c *Cache) Len() int {
	c.entriesLock.RLock()
	defer c.entriesLock.RUnlock()
	return len(c.entries)
}

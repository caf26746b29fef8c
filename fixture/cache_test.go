package fixture

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crytic/chainfixture/chain"
	"github.com/crytic/chainfixture/chain/config"
	"github.com/crytic/chainfixture/configs"
	"github.com/crytic/chainfixture/utils/testutils"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend whose state is a single integer.
type fakeBackend struct {
	state       int
	snapshots   map[chain.SnapshotID]int
	nextID      int
	snapshotErr error
	reverts     int
	lock        sync.Mutex
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{snapshots: make(map[chain.SnapshotID]int)}
}

func (b *fakeBackend) Snapshot() (chain.SnapshotID, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.snapshotErr != nil {
		return "", b.snapshotErr
	}
	b.nextID++
	id := chain.SnapshotID(fmt.Sprintf("snapshot-%d", b.nextID))
	b.snapshots[id] = b.state
	return id, nil
}

func (b *fakeBackend) RevertToSnapshot(id chain.SnapshotID) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	state, ok := b.snapshots[id]
	if !ok {
		return fmt.Errorf("%w: %s", chain.ErrInvalidSnapshot, id)
	}
	b.state = state
	b.reverts++
	return nil
}

func (b *fakeBackend) DeleteSnapshot(id chain.SnapshotID) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.snapshots[id]; !ok {
		return chain.ErrInvalidSnapshot
	}
	delete(b.snapshots, id)
	return nil
}

// forgetAll invalidates every snapshot, as a chain restart would.
func (b *fakeBackend) forgetAll() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.snapshots = make(map[chain.SnapshotID]int)
}

func (b *fakeBackend) get() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.state
}

func (b *fakeBackend) add(n int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.state += n
}

// countingFixture creates a fixture which adds 1 to the backend state and counts its executions.
func countingFixture(backend *fakeBackend, calls *int32) *Fixture[int] {
	return New("counting", func(ctx context.Context) (int, error) {
		atomic.AddInt32(calls, 1)
		backend.add(1)
		return backend.get(), nil
	})
}

// TestLoadRunsSetupOnce verifies a second load returns the stored result without running setup.
func TestLoadRunsSetupOnce(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := countingFixture(backend, &calls)
	assert.False(t, cache.Cached(f))

	first, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	second, err := Load(context.Background(), cache, f)
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, cache.Cached(f))
	assert.Equal(t, 1, cache.Len())

	// The leader path does not revert, the hit does.
	assert.Equal(t, 1, backend.reverts)
}

// TestLoadRollsBackState verifies state changed after a load is rolled back by the next load.
func TestLoadRollsBackState(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := countingFixture(backend, &calls)

	_, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	backend.add(41)
	assert.Equal(t, 42, backend.get())

	_, err = Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.get())
}

// TestLoadReturnsSameResultValue verifies the stored result is returned as is, so embedded pointers keep identity.
func TestLoadReturnsSameResultValue(t *testing.T) {
	type deployment struct {
		Address common.Address
	}
	cache := NewCache(newFakeBackend(), configs.FixtureConfig{})
	f := New("deployment", func(ctx context.Context) (*deployment, error) {
		return &deployment{Address: common.HexToAddress("0x1234")}, nil
	})

	first, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	second, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

// TestDistinctFixturesAreIndependent verifies fixtures keep independent entries, even when wrapping the same
// procedure, and loading one does not invalidate the other.
func TestDistinctFixturesAreIndependent(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	setup := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		backend.add(10)
		return backend.get(), nil
	}
	f := New("f", setup)
	g := New("g", setup)
	assert.NotEqual(t, f.ID(), g.ID())

	fResult, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	gResult, err := Load(context.Background(), cache, g)
	require.NoError(t, err)
	assert.Equal(t, 10, fResult)
	assert.Equal(t, 20, gResult)
	assert.EqualValues(t, 2, calls)
	assert.Equal(t, 2, cache.Len())

	// Alternate between the two, each load restores its own snapshot.
	for i := 0; i < 3; i++ {
		_, err = Load(context.Background(), cache, f)
		require.NoError(t, err)
		assert.Equal(t, 10, backend.get())

		_, err = Load(context.Background(), cache, g)
		require.NoError(t, err)
		assert.Equal(t, 20, backend.get())
	}
	assert.EqualValues(t, 2, calls)
}

// TestFailingSetupIsNotCached verifies a setup error is returned unmodified, leaves no entry and the next load
// runs setup again.
func TestFailingSetupIsNotCached(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	setupErr := errors.New("deployment reverted: Ownable: caller is not the owner")
	var calls int32
	f := New("flaky", func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, setupErr
		}
		backend.add(1)
		return backend.get(), nil
	})

	_, err := Load(context.Background(), cache, f)
	assert.Same(t, setupErr, err)
	assert.Equal(t, setupErr.Error(), err.Error())
	assert.False(t, cache.Cached(f))
	assert.Equal(t, 0, cache.Len())

	result, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, 1, result)
	assert.EqualValues(t, 2, calls)
	assert.True(t, cache.Cached(f))
}

// TestSnapshotFailureIsNotCached verifies a snapshot error after a successful setup leaves no entry.
func TestSnapshotFailureIsNotCached(t *testing.T) {
	backend := newFakeBackend()
	backend.snapshotErr = errors.New("snapshot limit reached")
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := countingFixture(backend, &calls)

	_, err := Load(context.Background(), cache, f)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.snapshotErr)
	assert.False(t, cache.Cached(f))

	backend.snapshotErr = nil
	_, err = Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

// TestInvalidSnapshotFailsLoad verifies a rejected revert fails the load by default and keeps the entry.
func TestInvalidSnapshotFailsLoad(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := countingFixture(backend, &calls)
	_, err := Load(context.Background(), cache, f)
	require.NoError(t, err)

	backend.forgetAll()
	_, err = Load(context.Background(), cache, f)
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrInvalidSnapshot)
	assert.Equal(t, "invalid snapshot: snapshot-1", err.Error())
	assert.EqualValues(t, 1, calls)
	assert.True(t, cache.Cached(f))
}

// TestInvalidSnapshotRetry verifies the opt-in recovery drops the entry and runs setup once more.
func TestInvalidSnapshotRetry(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{RetryOnInvalidSnapshot: true})

	var calls int32
	f := countingFixture(backend, &calls)
	_, err := Load(context.Background(), cache, f)
	require.NoError(t, err)

	backend.forgetAll()
	result, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.EqualValues(t, 2, calls)

	// The new entry is used from then on.
	backend.add(5)
	result, err = Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.Equal(t, 2, backend.get())
	assert.EqualValues(t, 2, calls)
}

// TestRetryIgnoresOtherRevertErrors verifies the recovery only applies to invalid snapshots.
func TestRetryIgnoresOtherRevertErrors(t *testing.T) {
	revertErr := errors.New("trie node missing")
	backend := &erroringBackend{fakeBackend: newFakeBackend(), revertErr: revertErr}
	cache := NewCache(backend, configs.FixtureConfig{RetryOnInvalidSnapshot: true})

	var calls int32
	f := countingFixture(backend.fakeBackend, &calls)
	_, err := Load(context.Background(), cache, f)
	require.NoError(t, err)

	_, err = Load(context.Background(), cache, f)
	assert.Same(t, revertErr, err)
	assert.EqualValues(t, 1, calls)
}

// erroringBackend fails every revert with a fixed error.
type erroringBackend struct {
	*fakeBackend
	revertErr error
}

func (b *erroringBackend) RevertToSnapshot(id chain.SnapshotID) error {
	return b.revertErr
}

// TestForgetAndClear verifies dropped entries run setup again and release their snapshots.
func TestForgetAndClear(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var fCalls, gCalls int32
	f := countingFixture(backend, &fCalls)
	g := countingFixture(backend, &gCalls)

	_, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	_, err = Load(context.Background(), cache, g)
	require.NoError(t, err)
	assert.Len(t, backend.snapshots, 2)

	assert.True(t, cache.Forget(f))
	assert.False(t, cache.Forget(f))
	assert.False(t, cache.Cached(f))
	assert.True(t, cache.Cached(g))
	assert.Len(t, backend.snapshots, 1)

	_, err = Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fCalls)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
	assert.Len(t, backend.snapshots, 0)

	_, err = Load(context.Background(), cache, g)
	require.NoError(t, err)
	assert.EqualValues(t, 2, gCalls)
}

// TestCachesAreIsolated verifies two caches over the same backend do not share entries.
func TestCachesAreIsolated(t *testing.T) {
	backend := newFakeBackend()
	first := NewCache(backend, configs.FixtureConfig{})
	second := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := countingFixture(backend, &calls)
	_, err := Load(context.Background(), first, f)
	require.NoError(t, err)
	_, err = Load(context.Background(), second, f)
	require.NoError(t, err)

	assert.EqualValues(t, 2, calls)
}

// TestLoadHonorsCancellation verifies a done context fails the load before setup runs.
func TestLoadHonorsCancellation(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := countingFixture(backend, &calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, cache, f)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, calls)
}

// TestConcurrentLoadsShareSetup verifies concurrent loads of one fixture run setup once and all observe its result.
func TestConcurrentLoadsShareSetup(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var calls int32
	f := New("slow", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		backend.add(7)
		return backend.get(), nil
	})

	const loaders = 16
	results := make([]int, loaders)
	errs := make([]error, loaders)
	var wg sync.WaitGroup
	for i := 0; i < loaders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Load(context.Background(), cache, f)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	for i := 0; i < loaders; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 7, results[i])
	}
	assert.Equal(t, 7, backend.get())
	assert.Equal(t, 1, cache.Len())
}

// TestConcurrentDistinctFixtures verifies a load of one fixture cannot revert the chain while another fixture's
// setup is still running, so the slower fixture snapshots its own state.
func TestConcurrentDistinctFixtures(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	g := New("g", func(ctx context.Context) (int, error) {
		backend.add(100)
		return backend.get(), nil
	})
	gResult, err := Load(context.Background(), cache, g)
	require.NoError(t, err)
	require.Equal(t, 100, gResult)

	started := make(chan struct{})
	f := New("f", func(ctx context.Context) (int, error) {
		backend.add(1)
		close(started)
		time.Sleep(50 * time.Millisecond)
		return backend.get(), nil
	})

	var wg sync.WaitGroup
	var fResult int
	var fErr, gErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		fResult, fErr = Load(context.Background(), cache, f)
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		gResult, gErr = Load(context.Background(), cache, g)
	}()
	wg.Wait()

	require.NoError(t, fErr)
	require.NoError(t, gErr)
	assert.Equal(t, 101, fResult)
	assert.Equal(t, 100, gResult)
	assert.Equal(t, 100, backend.get())

	fResult, err = Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, 101, fResult)
	assert.Equal(t, 101, backend.get())
}

// TestNestedLoads verifies a setup procedure can load another fixture of the same cache, including while other
// goroutines load both fixtures.
func TestNestedLoads(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	var fCalls, gCalls int32
	g := New("g", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&gCalls, 1)
		time.Sleep(10 * time.Millisecond)
		backend.add(10)
		return backend.get(), nil
	})
	f := New("f", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&fCalls, 1)
		if _, err := Load(ctx, cache, g); err != nil {
			return 0, err
		}
		backend.add(1)
		return backend.get(), nil
	})

	const loaders = 8
	results := make([]int, loaders)
	errs := make([]error, loaders)
	var wg sync.WaitGroup
	for i := 0; i < loaders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				results[i], errs[i] = Load(context.Background(), cache, f)
			} else {
				results[i], errs[i] = Load(context.Background(), cache, g)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < loaders; i++ {
		require.NoError(t, errs[i])
		if i%2 == 0 {
			assert.Equal(t, 11, results[i])
		} else {
			assert.Equal(t, 10, results[i])
		}
	}
	assert.EqualValues(t, 1, fCalls)
	assert.EqualValues(t, 1, gCalls)

	result, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, 11, result)
	assert.Equal(t, 11, backend.get())
	result, err = Load(context.Background(), cache, g)
	require.NoError(t, err)
	assert.Equal(t, 10, result)
	assert.Equal(t, 10, backend.get())
}

// TestCancelledLoadDoesNotFailWaiters verifies a caller waiting on another caller's setup runs setup itself when
// that caller is cancelled.
func TestCancelledLoadDoesNotFailWaiters(t *testing.T) {
	backend := newFakeBackend()
	cache := NewCache(backend, configs.FixtureConfig{})

	started := make(chan struct{})
	var calls int32
	f := New("shared", func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		}
		backend.add(1)
		return backend.get(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = Load(ctx, cache, f)
	}()
	<-started

	var secondResult int
	var secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		secondResult, secondErr = Load(context.Background(), cache, f)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.ErrorIs(t, firstErr, context.Canceled)
	require.NoError(t, secondErr)
	assert.Equal(t, 1, secondResult)
	assert.EqualValues(t, 2, calls)
	assert.True(t, cache.Cached(f))
}

// TestLoadNilInterfaceResult verifies fixtures may return a nil interface value.
func TestLoadNilInterfaceResult(t *testing.T) {
	cache := NewCache(newFakeBackend(), configs.FixtureConfig{})
	f := New("empty", func(ctx context.Context) (fmt.Stringer, error) {
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		result, err := Load(context.Background(), cache, f)
		require.NoError(t, err)
		assert.Nil(t, result)
	}
}

// newFixtureChain creates a TestChain with a deployer and a player account.
func newFixtureChain(t *testing.T) (*chain.TestChain, []chain.Account) {
	testChainConfig := config.DefaultTestChainConfig()
	testChainConfig.Accounts.Count = 2
	testChain, accounts, err := chain.NewTestChainWithAccounts(testChainConfig)
	require.NoError(t, err)
	t.Cleanup(testChain.Close)
	return testChain, accounts
}

// TestTokenScenario mints one unit in setup, one more after loading, and verifies the next load observes one.
func TestTokenScenario(t *testing.T) {
	testChain, accounts := newFixtureChain(t)
	cache := NewCache(testChain, configs.FixtureConfig{})
	deployer := accounts[0].Address

	var calls int32
	f := New("token", func(ctx context.Context) (common.Address, error) {
		atomic.AddInt32(&calls, 1)
		token, err := testChain.DeployContract(deployer, testutils.CounterInitBytecode, nil)
		if err != nil {
			return common.Address{}, err
		}
		_, err = testChain.Transact(deployer, token, nil, nil)
		return token, err
	})
	supply := func(token common.Address) uint64 {
		return testChain.StorageAt(token, testutils.CounterSlot).Big().Uint64()
	}

	token, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.EqualValues(t, 1, supply(token))

	_, err = testChain.Transact(deployer, token, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, supply(token))

	reloaded, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.Equal(t, token, reloaded)
	assert.EqualValues(t, 1, supply(token))
	assert.EqualValues(t, 1, calls)
}

// TestEtherScenario verifies a balance changed after loading starts from its setup value on the next load.
func TestEtherScenario(t *testing.T) {
	testChain, accounts := newFixtureChain(t)
	cache := NewCache(testChain, configs.FixtureConfig{})
	deployer, player := accounts[0].Address, accounts[1].Address

	f := New("vault", func(ctx context.Context) (common.Address, error) {
		return testChain.DeployContract(deployer, testutils.CounterInitBytecode, nil)
	})

	for round := 0; round < 3; round++ {
		vault, err := Load(context.Background(), cache, f)
		require.NoError(t, err)
		assert.True(t, testChain.BalanceAt(vault).IsZero())
		playerBalance := testChain.BalanceAt(player).Clone()

		require.NoError(t, testChain.Transfer(player, vault, big.NewInt(params.Ether)))
		assert.Equal(t, uint256.NewInt(params.Ether), testChain.BalanceAt(vault))
		assert.Equal(t, -1, testChain.BalanceAt(player).Cmp(playerBalance))
	}
	assert.EqualValues(t, 1, testChain.SnapshotCount())
}

// TestChainFixturesAreIndependent verifies two fixtures over one chain restore their own state.
func TestChainFixturesAreIndependent(t *testing.T) {
	testChain, accounts := newFixtureChain(t)
	cache := NewCache(testChain, configs.FixtureConfig{})
	deployer := accounts[0].Address

	deploy := func(ctx context.Context) (common.Address, error) {
		return testChain.DeployContract(deployer, testutils.CounterInitBytecode, nil)
	}
	f := New("first", deploy)
	g := New("second", deploy)

	fAddress, err := Load(context.Background(), cache, f)
	require.NoError(t, err)
	gAddress, err := Load(context.Background(), cache, g)
	require.NoError(t, err)
	assert.NotEqual(t, fAddress, gAddress)

	// The first fixture's state predates the second deployment.
	_, err = Load(context.Background(), cache, f)
	require.NoError(t, err)
	assert.NotEmpty(t, testChain.CodeAt(fAddress))
	assert.Empty(t, testChain.CodeAt(gAddress))

	_, err = Load(context.Background(), cache, g)
	require.NoError(t, err)
	assert.NotEmpty(t, testChain.CodeAt(fAddress))
	assert.NotEmpty(t, testChain.CodeAt(gAddress))
}

// TestChainSnapshotEvictionRetry verifies an evicted snapshot fails by default and is recovered when configured.
func TestChainSnapshotEvictionRetry(t *testing.T) {
	for _, retry := range []bool{false, true} {
		t.Run(fmt.Sprintf("retry=%v", retry), func(t *testing.T) {
			testChain, accounts := newFixtureChain(t)
			cache := NewCache(testChain, configs.FixtureConfig{RetryOnInvalidSnapshot: retry})

			var calls int32
			f := New("evicted", func(ctx context.Context) (common.Address, error) {
				atomic.AddInt32(&calls, 1)
				return testChain.DeployContract(accounts[0].Address, testutils.CounterInitBytecode, nil)
			})
			_, err := Load(context.Background(), cache, f)
			require.NoError(t, err)

			testChain.ClearSnapshots()
			_, err = Load(context.Background(), cache, f)
			if !retry {
				assert.ErrorIs(t, err, chain.ErrInvalidSnapshot)
				assert.EqualValues(t, 1, calls)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, 2, calls)
			assert.EqualValues(t, 1, testChain.SnapshotCount())
		})
	}
}

package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/crytic/chainfixture/chain/config"
	"github.com/crytic/chainfixture/chain/types"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/utils"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/math"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/rawdb"
	gethState "github.com/crytic/medusa-geth/core/state"
	"github.com/crytic/medusa-geth/core/tracing"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/crytic/medusa-geth/ethdb"
	"github.com/crytic/medusa-geth/params"
	"github.com/crytic/medusa-geth/triedb"
	"github.com/crytic/medusa-geth/triedb/hashdb"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// unlimitedGas funds the gas pool of calls, which are not bound by a block gas limit.
const unlimitedGas = ^uint64(0)

// TestChain represents a simulated Ethereum chain used for running challenge scenarios. It maintains blocks
// in-memory and strips away consensus objects, leaving the EVM, the world state and snapshots of both.
type TestChain struct {
	// blocks represents the blocks committed on the current chain, starting with genesis.
	blocks []*types.Block

	// pendingBlock is a block currently under construction which has not yet been committed.
	pendingBlock *types.Block

	// BlockGasLimit defines the maximum amount of gas that can be consumed by messages in a block.
	BlockGasLimit uint64

	// testChainConfig represents the configuration used by this TestChain.
	testChainConfig *config.TestChainConfig

	// chainConfig represents the go-ethereum fork configuration used by the EVM.
	chainConfig *params.ChainConfig

	// vmConfigExtensions defines EVM extensions to use with each call or transaction.
	vmConfigExtensions *vm.ConfigExtensions

	// genesisDefinition represents the Genesis information used to generate the chain's initial state.
	genesisDefinition *core.Genesis

	// state represents the current world state. It is the subject of state changes when executing messages, and
	// is reloaded from a state root whenever blocks are committed or reverted.
	state *gethState.StateDB

	// stateDatabase refers to the database object which state uses to store data. It is constructed over db.
	stateDatabase gethState.Database

	// db represents the in-memory key-value store backing stateDatabase.
	db ethdb.Database

	// snapshots tracks the snapshots recorded on this chain.
	snapshots *snapshotRegistry

	// Events defines the event system for the TestChain.
	Events TestChainEvents

	// logger describes the chain's sub-logger
	logger *logging.Logger

	// closeOnce ensures the trie database is only closed once.
	closeOnce sync.Once
}

// NewTestChain creates a simulated Ethereum backend with the provided genesis allocation. If a nil config is
// provided, a default one is used.
func NewTestChain(genesisAlloc gethTypes.GenesisAlloc, testChainConfig *config.TestChainConfig) (*TestChain, error) {
	if testChainConfig == nil {
		testChainConfig = config.DefaultTestChainConfig()
	}
	if err := testChainConfig.Validate(); err != nil {
		return nil, err
	}

	// Copy the go-ethereum test chain config, so it is not shared across chains.
	chainConfig, err := utils.CopyChainConfig(params.TestChainConfig)
	if err != nil {
		return nil, err
	}

	// Activate every fork up to Prague from genesis.
	forkTime := uint64(0)
	chainConfig.ShanghaiTime = &forkTime
	chainConfig.CancunTime = &forkTime
	chainConfig.PragueTime = &forkTime
	chainConfig.BlobScheduleConfig = params.DefaultBlobSchedule

	genesisDefinition := &core.Genesis{
		Config:     chainConfig,
		Nonce:      0,
		Timestamp:  0,
		ExtraData:  []byte("chainfixture"),
		GasLimit:   testChainConfig.BlockGasLimit,
		Difficulty: common.Big0,
		Mixhash:    common.Hash{},
		Coinbase:   common.Address{},
		// Cloned, so callers can keep mutating their allocation
		Alloc:      maps.Clone(genesisAlloc),
		Number:     0,
		GasUsed:    0,
		ParentHash: common.Hash{},
		BaseFee:    big.NewInt(0),
	}

	// Create an in-memory database. Trie nodes of every committed root stay in the hashdb dirty cache, which is
	// what allows reverting to any earlier root.
	db := rawdb.NewMemoryDatabase()
	trieDB := triedb.NewDatabase(db, &triedb.Config{HashDB: hashdb.Defaults})
	genesisBlock := genesisDefinition.MustCommit(db, trieDB)

	chain := &TestChain{
		blocks:             []*types.Block{types.NewBlock(genesisBlock.Header())},
		BlockGasLimit:      genesisBlock.Header().GasLimit,
		testChainConfig:    testChainConfig,
		chainConfig:        genesisDefinition.Config,
		vmConfigExtensions: testChainConfig.GetVMConfigExtensions(),
		genesisDefinition:  genesisDefinition,
		stateDatabase:      gethState.NewDatabase(trieDB, nil),
		db:                 db,
		snapshots:          newSnapshotRegistry(testChainConfig.MaxSnapshots),
		logger:             logging.GlobalLogger.NewSubLogger("module", logging.CHAIN_SERVICE),
	}

	// Obtain the state for the genesis block and set it as the chain's current state.
	chain.state, err = chain.StateAfterBlockNumber(0)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// Close releases the trie database's caches. A TestChain which is not closed keeps its trie cache alive.
func (t *TestChain) Close() {
	t.closeOnce.Do(func() {
		t.stateDatabase.TrieDB().Close()
	})
}

// GenesisDefinition returns the core.Genesis definition used to initialize the chain.
func (t *TestChain) GenesisDefinition() *core.Genesis {
	return t.genesisDefinition
}

// Config returns the TestChainConfig the chain was created with.
func (t *TestChain) Config() *config.TestChainConfig {
	return t.testChainConfig
}

// State returns the current world state of the chain. This includes changes made by messages in a pending block.
func (t *TestChain) State() *gethState.StateDB {
	return t.state
}

// CommittedBlocks returns the blocks committed to the chain, starting with genesis.
func (t *TestChain) CommittedBlocks() []*types.Block {
	return t.blocks
}

// Head returns the head of the chain (the latest committed block).
func (t *TestChain) Head() *types.Block {
	return t.blocks[len(t.blocks)-1]
}

// HeadBlockNumber returns the test chain head's block number, where zero is the genesis block.
func (t *TestChain) HeadBlockNumber() uint64 {
	return t.Head().Header.Number.Uint64()
}

// BlockFromNumber obtains the committed block with the provided block number.
func (t *TestChain) BlockFromNumber(blockNumber uint64) (*types.Block, error) {
	for _, block := range t.blocks {
		if block.Header.Number.Uint64() == blockNumber {
			return block, nil
		}
	}
	return nil, fmt.Errorf("could not find block with block number %v", blockNumber)
}

// BlockHashFromNumber returns the hash of the committed block with the provided block number.
func (t *TestChain) BlockHashFromNumber(blockNumber uint64) (common.Hash, error) {
	block, err := t.BlockFromNumber(blockNumber)
	if err != nil {
		return common.Hash{}, err
	}
	return block.Hash, nil
}

// StateFromRoot obtains a state from a given state root hash.
func (t *TestChain) StateFromRoot(root common.Hash) (*gethState.StateDB, error) {
	return gethState.New(root, t.stateDatabase)
}

// StateRootAfterBlockNumber obtains the world state root hash after processing all messages in the provided block
// number.
func (t *TestChain) StateRootAfterBlockNumber(blockNumber uint64) (common.Hash, error) {
	block, err := t.BlockFromNumber(blockNumber)
	if err != nil {
		return common.Hash{}, err
	}
	return block.Header.Root, nil
}

// StateAfterBlockNumber obtains the world state after processing all messages in the provided block number.
func (t *TestChain) StateAfterBlockNumber(blockNumber uint64) (*gethState.StateDB, error) {
	root, err := t.StateRootAfterBlockNumber(blockNumber)
	if err != nil {
		return nil, err
	}
	return t.StateFromRoot(root)
}

// RevertToBlockNumber reverts all blocks after the provided block number and reloads the state.
func (t *TestChain) RevertToBlockNumber(blockNumber uint64) error {
	for i, block := range t.blocks {
		if block.Header.Number.Uint64() == blockNumber {
			return t.RevertToBlockIndex(uint64(i + 1))
		}
	}
	return fmt.Errorf("could not revert to block number %d because no committed block has that number", blockNumber)
}

// RevertToBlockIndex keeps the first index blocks (genesis included), removes the rest and reloads the state.
func (t *TestChain) RevertToBlockIndex(index uint64) error {
	if index == 0 || index > uint64(len(t.blocks)) {
		return fmt.Errorf("could not revert to block index %d because the chain has %d blocks", index, len(t.blocks))
	}

	if err := t.PendingBlockDiscard(); err != nil {
		return err
	}

	removedBlocks := t.blocks[index:]
	t.blocks = t.blocks[:index]
	return t.reloadHeadState(removedBlocks)
}

// reloadHeadState reloads the world state from the head block's root and announces any removed blocks.
func (t *TestChain) reloadHeadState(removedBlocks []*types.Block) error {
	var err error
	t.state, err = t.StateFromRoot(t.Head().Header.Root)
	if err != nil {
		return err
	}

	if len(removedBlocks) == 0 {
		return nil
	}
	return t.Events.BlocksRemoved.Publish(BlocksRemovedEvent{
		Chain:  t,
		Blocks: removedBlocks,
	})
}

// CallContract performs a message call over the current chain state and discards any changes it makes. This is the
// equivalent of eth_call, used to query view functions. If state is nil, the current chain state is used.
func (t *TestChain) CallContract(msg *core.Message, state *gethState.StateDB) (*core.ExecutionResult, error) {
	if state == nil {
		state = t.state
	}

	// Snapshot the state so the call's changes can be undone
	snapshot := state.Snapshot()
	defer state.RevertToSnapshot(snapshot)

	// Calls are free: give the caller an unlimited balance.
	state.SetBalance(msg.From, uint256.MustFromBig(math.MaxBig256), tracing.BalanceChangeUnspecified)

	header := t.Head().Header
	if t.pendingBlock != nil {
		header = t.pendingBlock.Header
	}
	evm := vm.NewEVM(newBlockContext(header, t.blockHashOrZero), state, t.chainConfig, vm.Config{
		NoBaseFee:        true,
		ConfigExtensions: t.vmConfigExtensions,
	})

	gasPool := new(core.GasPool).AddGas(unlimitedGas)
	return core.ApplyMessage(evm, msg, gasPool)
}

// PendingBlock describes the current pending block which is being constructed and awaiting commitment to the chain.
// This may be nil if no pending block was created.
func (t *TestChain) PendingBlock() *types.Block {
	return t.pendingBlock
}

// PendingBlockCreate constructs an empty pending block whose block number and timestamp are one greater than the
// current head's.
func (t *TestChain) PendingBlockCreate() (*types.Block, error) {
	return t.PendingBlockCreateWithParameters(t.HeadBlockNumber()+1, t.Head().Header.Time+1, nil)
}

// PendingBlockCreateWithParameters constructs an empty pending block using the block number and timestamp
// provided. If blockGasLimit is nil, the chain's BlockGasLimit is used.
func (t *TestChain) PendingBlockCreateWithParameters(blockNumber uint64, blockTime uint64, blockGasLimit *uint64) (*types.Block, error) {
	if t.pendingBlock != nil {
		return nil, errors.New("could not create a new pending block for chain, as a block is already pending")
	}
	if blockNumber <= t.HeadBlockNumber() {
		return nil, fmt.Errorf("could not create a pending block with number %d, the chain head is at %d", blockNumber, t.HeadBlockNumber())
	}
	if blockGasLimit == nil {
		blockGasLimit = &t.BlockGasLimit
	}

	parent := t.Head()
	header := &gethTypes.Header{
		ParentHash:  parent.Hash,
		UncleHash:   gethTypes.EmptyUncleHash,
		Root:        parent.Header.Root,
		TxHash:      gethTypes.EmptyRootHash,
		ReceiptHash: gethTypes.EmptyRootHash,
		Bloom:       gethTypes.Bloom{},
		GasLimit:    *blockGasLimit,
		GasUsed:     0,
		Extra:       []byte{},
		Nonce:       gethTypes.BlockNonce{},
		Coinbase:    parent.Header.Coinbase,
		Difficulty:  common.Big0,
		Number:      new(big.Int).SetUint64(blockNumber),
		Time:        blockTime,
		MixDigest:   parent.Hash,
		BaseFee:     new(big.Int).Set(parent.Header.BaseFee),
	}
	t.pendingBlock = types.NewBlock(header)
	return t.pendingBlock, nil
}

// PendingBlockAddTx executes a message in the current pending block, updating the block header with execution
// information. A message which reverts is still included; only an invalid message (bad nonce, insufficient funds,
// gas pool exhaustion) returns an error.
func (t *TestChain) PendingBlockAddTx(message *core.Message) (*types.MessageResults, error) {
	if t.pendingBlock == nil {
		return nil, errors.New("could not add tx to the chain's pending block because no pending block was created")
	}

	header := t.pendingBlock.Header
	gasPool := new(core.GasPool).AddGas(header.GasLimit - header.GasUsed)

	// Derive a transaction from the message for hashing and receipt purposes
	tx := utils.MessageToTransaction(message)
	t.state.SetTxContext(tx.Hash(), len(t.pendingBlock.Messages))

	evm := vm.NewEVM(newBlockContext(header, t.blockHashOrZero), t.state, t.chainConfig, vm.Config{
		NoBaseFee:        true,
		ConfigExtensions: t.vmConfigExtensions,
	})

	// The creation address depends on the nonce before execution.
	var contractAddress *common.Address
	if message.To == nil {
		created := t.creationAddress(message)
		contractAddress = &created
	}

	executionResult, err := core.ApplyMessage(evm, message, gasPool)
	if err != nil {
		return nil, fmt.Errorf("test chain state write error when adding tx to pending block: %v", err)
	}
	t.state.Finalise(true)

	receipt := &gethTypes.Receipt{
		Type:              tx.Type(),
		Status:            gethTypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: header.GasUsed + executionResult.UsedGas,
		TxHash:            tx.Hash(),
		GasUsed:           executionResult.UsedGas,
		Logs:              t.state.GetLogs(tx.Hash(), header.Number.Uint64(), t.pendingBlock.Hash),
		BlockHash:         t.pendingBlock.Hash,
		BlockNumber:       new(big.Int).Set(header.Number),
		TransactionIndex:  uint(len(t.pendingBlock.Messages)),
	}
	if executionResult.Failed() {
		receipt.Status = gethTypes.ReceiptStatusFailed
		// A failed creation leaves no contract behind
		contractAddress = nil
	}
	if contractAddress != nil {
		receipt.ContractAddress = *contractAddress
	}

	messageResult := &types.MessageResults{
		TxHash:          tx.Hash(),
		ExecutionResult: executionResult,
		Receipt:         receipt,
		ContractAddress: contractAddress,
	}

	header.GasUsed += executionResult.UsedGas
	t.pendingBlock.Messages = append(t.pendingBlock.Messages, message)
	t.pendingBlock.MessageResults = append(t.pendingBlock.MessageResults, messageResult)
	return messageResult, nil
}

// creationAddress returns the address a contract creation message will deploy to, honoring configured address
// overrides.
func (t *TestChain) creationAddress(message *core.Message) common.Address {
	initBytecodeHash := crypto.Keccak256Hash(message.Data)
	if overrideAddr, ok := t.testChainConfig.ContractAddressOverrides[initBytecodeHash]; ok {
		return overrideAddr
	}
	return crypto.CreateAddress(message.From, t.state.GetNonce(message.From))
}

// PendingBlockCommit commits the pending block to the chain, so it is set as the new head.
func (t *TestChain) PendingBlockCommit() error {
	if t.pendingBlock == nil {
		return fmt.Errorf("could not commit chain's pending block, as no pending block was created")
	}

	// Commit the state to obtain the root hash for the block.
	root, err := t.state.Commit(t.pendingBlock.Header.Number.Uint64(), true, true)
	if err != nil {
		return err
	}
	t.pendingBlock.Header.Root = root

	// Committing invalidates the cached tries, so the state is reloaded from the new root.
	t.state, err = t.StateFromRoot(root)
	if err != nil {
		return err
	}

	t.pendingBlock.Hash = t.pendingBlock.Header.Hash()
	t.blocks = append(t.blocks, t.pendingBlock)

	committed := t.pendingBlock
	t.pendingBlock = nil
	return t.Events.PendingBlockCommitted.Publish(PendingBlockCommittedEvent{
		Chain: t,
		Block: committed,
	})
}

// PendingBlockDiscard discards the pending block and any state changes made by its messages.
func (t *TestChain) PendingBlockDiscard() error {
	if t.pendingBlock == nil {
		return nil
	}
	t.pendingBlock = nil

	var err error
	t.state, err = t.StateFromRoot(t.Head().Header.Root)
	return err
}

package compilation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crytic/chainfixture/compilation/types"
	"github.com/crytic/chainfixture/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeArtifactHash_Empty(t *testing.T) {
	t.Parallel()

	hash := ComputeArtifactHash(nil)
	assert.NotEmpty(t, hash, "hash should not be empty even for no contracts")
	assert.Equal(t, hash, ComputeArtifactHash([]*types.CompiledContract{}), "hash should be the same for nil and empty slice")
}

func TestComputeArtifactHash_DeterministicAndOrderIndependent(t *testing.T) {
	t.Parallel()

	contracts := createTestContracts(0x40)
	reversed := []*types.CompiledContract{contracts[1], contracts[0]}

	assert.Equal(t, ComputeArtifactHash(contracts), ComputeArtifactHash(contracts))
	assert.Equal(t, ComputeArtifactHash(contracts), ComputeArtifactHash(reversed))

	// The input slice is left in its original order.
	assert.Equal(t, "Vault", reversed[0].Name)
}

func TestComputeArtifactHash_DifferentBytecode(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, ComputeArtifactHash(createTestContracts(0x40)), ComputeArtifactHash(createTestContracts(0x41)))
}

func TestLoadArtifactHashCache_NonExistent(t *testing.T) {
	t.Parallel()

	assert.Nil(t, LoadArtifactHashCache(filepath.Join(t.TempDir(), "missing")))
}

func TestSaveAndLoadArtifactHashCache(t *testing.T) {
	t.Parallel()

	nestedDir := filepath.Join(t.TempDir(), "nested", "dir")
	originalCache := &ArtifactHashCache{
		Hash:      "abc123def456",
		Timestamp: time.Now().Truncate(time.Second),
	}
	require.NoError(t, SaveArtifactHashCache(nestedDir, originalCache))

	loadedCache := LoadArtifactHashCache(nestedDir)
	require.NotNil(t, loadedCache)
	assert.Equal(t, originalCache.Hash, loadedCache.Hash)
	assert.WithinDuration(t, originalCache.Timestamp, loadedCache.Timestamp, time.Second)
}

func TestLoadArtifactHashCache_InvalidJSON(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ArtifactHashCacheFileName), []byte("invalid json"), 0644))
	assert.Nil(t, LoadArtifactHashCache(tempDir))
}

func TestNotifyArtifactHashStatus_RecordsHash(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	contracts := createTestContracts(0x40)
	NotifyArtifactHashStatus(contracts, tempDir, logging.GlobalLogger)

	cache := LoadArtifactHashCache(tempDir)
	require.NotNil(t, cache)
	assert.Equal(t, ComputeArtifactHash(contracts), cache.Hash)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30 seconds"},
		{1 * time.Second, "1 second"},
		{1 * time.Minute, "1 minute"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Hour, "1 hour"},
		{3 * time.Hour, "3 hours"},
		{24 * time.Hour, "1 day"},
		{72 * time.Hour, "3 days"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

// createTestContracts returns two contracts, the last byte of the first one's init bytecode set to lastByte.
func createTestContracts(lastByte byte) []*types.CompiledContract {
	return []*types.CompiledContract{
		{
			Name:            "Counter",
			InitBytecode:    []byte{0x60, 0x80, 0x60, lastByte},
			RuntimeBytecode: []byte{0x60, 0x80, 0x60, 0x40, 0x52},
		},
		{
			Name:         "Vault",
			InitBytecode: []byte{0x60, 0x00},
		},
	}
}

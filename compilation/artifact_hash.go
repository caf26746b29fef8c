package compilation

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/crytic/chainfixture/compilation/types"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/logging/colors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// ArtifactHashCacheFileName is the name of the file used to store the artifact hash.
const ArtifactHashCacheFileName = ".chainfixture-artifact-hash"

// ArtifactHashCache stores the hash of contract artifacts along with metadata.
type ArtifactHashCache struct {
	// Hash is the SHA3-256 hash of the contracts' bytecode.
	Hash string `json:"hash"`
	// Timestamp is when the hash was computed.
	Timestamp time.Time `json:"timestamp"`
}

// ComputeArtifactHash computes a SHA3-256 hash of the bytecode of the provided contracts. Contracts are hashed in
// name order, so the hash does not depend on the order they were loaded in.
func ComputeArtifactHash(contracts []*types.CompiledContract) string {
	sorted := make([]*types.CompiledContract, len(contracts))
	copy(sorted, contracts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	hasher := sha3.New256()
	for _, contract := range sorted {
		hasher.Write([]byte(contract.Name))
		hasher.Write(contract.InitBytecode)
		hasher.Write(contract.RuntimeBytecode)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// LoadArtifactHashCache loads the artifact hash cache from the specified directory.
// Returns nil if the cache file does not exist or cannot be parsed.
func LoadArtifactHashCache(directory string) *ArtifactHashCache {
	data, err := os.ReadFile(filepath.Join(directory, ArtifactHashCacheFileName))
	if err != nil {
		return nil
	}

	var cache ArtifactHashCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

// SaveArtifactHashCache saves the artifact hash cache to the specified directory.
func SaveArtifactHashCache(directory string, cache *ArtifactHashCache) error {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache")
	}

	if err := os.WriteFile(filepath.Join(directory, ArtifactHashCacheFileName), data, 0644); err != nil {
		return errors.Wrap(err, "failed to write cache file")
	}
	return nil
}

// NotifyArtifactHashStatus compares the hash of the provided contracts with the hash recorded by the previous run,
// logs whether the artifacts changed, and records the new hash.
func NotifyArtifactHashStatus(contracts []*types.CompiledContract, cacheDirectory string, logger *logging.Logger) {
	if len(contracts) == 0 {
		return
	}

	currentHash := ComputeArtifactHash(contracts)
	cachedHash := LoadArtifactHashCache(cacheDirectory)

	if cachedHash == nil || cachedHash.Hash != currentHash {
		logger.Info(
			colors.Bold, "artifacts: ", colors.Reset,
			"running against a ", colors.GreenBold, "new", colors.Reset, " set of contract artifacts",
		)
	} else {
		logger.Info(
			colors.Bold, "artifacts: ", colors.Reset,
			"running against the ", colors.YellowBold, "same", colors.Reset,
			" contract artifacts as the last run (", formatDuration(time.Since(cachedHash.Timestamp)), " ago)",
		)
	}

	newCache := &ArtifactHashCache{
		Hash:      currentHash,
		Timestamp: time.Now(),
	}
	if err := SaveArtifactHashCache(cacheDirectory, newCache); err != nil {
		logger.Warn("Failed to save artifact hash cache", err)
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case d < time.Minute:
		return plural(int(d.Seconds()), "second")
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

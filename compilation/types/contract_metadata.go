package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
)

// ContractMetadata is an CBOR-encoded structure describing contract information which is embedded within smart contract
// bytecode by the Solidity compiler (unless explicitly directed not to).
// Reference: https://docs.soliditylang.org/en/v0.8.16/metadata.html
type ContractMetadata map[string]any

// metadataHashPrefixes defines patterns to use in search for CBOR-encoded contract metadata appended to the end of
// bytecode.
var metadataHashPrefixes = [][]byte{
	{0xa1, 0x65, 98, 122, 122, 114, 48, 0x58, 0x20},  // a1 65 "bzzr0" 0x58 0x20 (solc <= 0.5.8)
	{0xa2, 0x65, 98, 122, 122, 114, 48, 0x58, 0x20},  // a2 65 "bzzr0" 0x58 0x20 (solc >= 0.5.9)
	{0xa2, 0x65, 98, 122, 122, 114, 49, 0x58, 0x20},  // a2 65 "bzzr1" 0x58 0x20 (solc >= 0.5.11)
	{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73, 0x58, 0x22}, // a2 64 "ipfs" 0x58 0x22 (solc >= 0.6.0)
}

// byteCodeHashMetadataKeys defines the keys in the CBOR-encoded ContractMetadata which contain bytecode hashes.
var byteCodeHashMetadataKeys = [...]string{
	"bzzr0",
	"bzzr1",
	"ipfs",
}

// compilerVersionMetadataKey is the key under which solc records its version.
const compilerVersionMetadataKey = "solc"

// ExtractContractMetadata extracts contract metadata from provided byte code and returns it. If contract metadata
// could not be extracted, nil is returned.
func ExtractContractMetadata(bytecode []byte) *ContractMetadata {
	// solc ends the bytecode with the big-endian length of the metadata preceding it.
	if len(bytecode) > 2 {
		metadataLength := int(binary.BigEndian.Uint16(bytecode[len(bytecode)-2:]))
		metadataOffset := len(bytecode) - 2 - metadataLength
		if metadataLength > 0 && metadataOffset >= 0 {
			var metadata ContractMetadata
			if err := cbor.Unmarshal(bytecode[metadataOffset:len(bytecode)-2], &metadata); err == nil && len(metadata) > 0 {
				return &metadata
			}
		}
	}

	// Older compilers, or bytecode with constructor arguments appended, need a search for a known prefix.
	for _, metadataHashPrefix := range metadataHashPrefixes {
		metadataOffset := bytes.LastIndex(bytecode, metadataHashPrefix)
		if metadataOffset != -1 {
			var metadata ContractMetadata
			err := cbor.Unmarshal(bytecode[metadataOffset:], &metadata)
			if err != nil {
				continue
			}
			return &metadata
		}
	}
	return nil
}

// ExtractBytecodeHash extracts the bytecode hash from given contract metadata and returns the bytes representing the
// hash. If it could not be detected or extracted, nil is returned.
func (m ContractMetadata) ExtractBytecodeHash() []byte {
	for _, possibleMetadataKey := range byteCodeHashMetadataKeys {
		if bytecodeHashData, keyExists := m[possibleMetadataKey]; keyExists {
			if bytecodeHash, ok := bytecodeHashData.([]byte); ok {
				return bytecodeHash
			}
		}
	}
	return nil
}

// CompilerVersion returns the solc version recorded in the metadata, or nil if none was recorded. Release builds
// record three version bytes, prerelease builds record the full version string.
func (m ContractMetadata) CompilerVersion() (*semver.Version, error) {
	versionData, ok := m[compilerVersionMetadataKey]
	if !ok {
		return nil, nil
	}

	switch version := versionData.(type) {
	case []byte:
		if len(version) != 3 {
			return nil, errors.Errorf("solc version in contract metadata has %d bytes, expected 3", len(version))
		}
		return semver.NewVersion(fmt.Sprintf("%d.%d.%d", version[0], version[1], version[2]))
	case string:
		parsed, err := semver.NewVersion(version)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse solc version %q in contract metadata", version)
		}
		return parsed, nil
	default:
		return nil, errors.Errorf("solc version in contract metadata has unexpected type %T", versionData)
	}
}

package types

import (
	"bytes"
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/crytic/medusa-geth/accounts/abi"
	"golang.org/x/exp/slices"
)

// CompiledContract represents a single contract unit loaded from build artifacts.
type CompiledContract struct {
	// Name is the name of the contract.
	Name string

	// Abi describes a contract's application binary interface, a structure used to describe information needed
	// to interact with the contract such as constructor and function definitions with input/output variable
	// information, event declarations, and fallback and receive methods.
	Abi abi.ABI

	// InitBytecode describes the bytecode used to deploy a contract.
	InitBytecode []byte

	// RuntimeBytecode represents the rudimentary bytecode to be expected once the contract has been successfully
	// deployed. It is empty if the artifact did not provide it.
	RuntimeBytecode []byte
}

// IsMatch returns a boolean indicating whether provided contract bytecode is a match to this compiled contract
// definition.
func (c *CompiledContract) IsMatch(initBytecode []byte, runtimeBytecode []byte) bool {
	canCompareInit := len(initBytecode) > 0 && len(c.InitBytecode) > 0
	canCompareRuntime := len(runtimeBytecode) > 0 && len(c.RuntimeBytecode) > 0

	// Metadata hashes survive immutables and constructor arguments, so they are compared first.
	if canCompareRuntime {
		deploymentMetadata := ExtractContractMetadata(runtimeBytecode)
		definitionMetadata := ExtractContractMetadata(c.RuntimeBytecode)
		if deploymentMetadata != nil && definitionMetadata != nil {
			deploymentBytecodeHash := deploymentMetadata.ExtractBytecodeHash()
			definitionBytecodeHash := definitionMetadata.ExtractBytecodeHash()
			if deploymentBytecodeHash != nil && definitionBytecodeHash != nil {
				return bytes.Equal(deploymentBytecodeHash, definitionBytecodeHash)
			}
		}
	}

	// Init bytecode may carry appended constructor arguments, so only its prefix is compared.
	if canCompareInit {
		if len(c.InitBytecode) > len(initBytecode) {
			return false
		}
		if bytes.Equal(initBytecode[:len(c.InitBytecode)], c.InitBytecode) {
			return true
		}
	}

	if canCompareRuntime {
		return bytes.Equal(runtimeBytecode, c.RuntimeBytecode)
	}
	return false
}

// Metadata returns the compiler metadata embedded in the contract's bytecode, or nil if there is none.
func (c *CompiledContract) Metadata() *ContractMetadata {
	if len(c.RuntimeBytecode) > 0 {
		if metadata := ExtractContractMetadata(c.RuntimeBytecode); metadata != nil {
			return metadata
		}
	}
	return ExtractContractMetadata(c.InitBytecode)
}

// CompilerVersion returns the solc version that compiled the contract, or nil if its bytecode carries no metadata.
func (c *CompiledContract) CompilerVersion() (*semver.Version, error) {
	metadata := c.Metadata()
	if metadata == nil {
		return nil, nil
	}
	return metadata.CompilerVersion()
}

// GetDeploymentMessageData is a helper method used create contract deployment message data for the given contract.
// This data can be set in transaction/message structs "data" field to indicate the packed init bytecode and constructor
// argument data to use.
func (c *CompiledContract) GetDeploymentMessageData(args ...any) ([]byte, error) {
	initBytecodeWithArgs := slices.Clone(c.InitBytecode)
	if len(c.Abi.Constructor.Inputs) > 0 || len(args) > 0 {
		data, err := c.Abi.Pack("", args...)
		if err != nil {
			return nil, fmt.Errorf("could not encode constructor arguments of %s due to error: %v", c.Name, err)
		}
		initBytecodeWithArgs = append(initBytecodeWithArgs, data...)
	}
	return initBytecodeWithArgs, nil
}

// PackCall encodes a call to the named method with the given arguments.
func (c *CompiledContract) PackCall(method string, args ...any) ([]byte, error) {
	data, err := c.Abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("could not encode call to %s.%s due to error: %v", c.Name, method, err)
	}
	return data, nil
}

// UnpackResult decodes the return data of a call to the named method.
func (c *CompiledContract) UnpackResult(method string, returnData []byte) ([]any, error) {
	values, err := c.Abi.Unpack(method, returnData)
	if err != nil {
		return nil, fmt.Errorf("could not decode result of %s.%s due to error: %v", c.Name, method, err)
	}
	return values, nil
}

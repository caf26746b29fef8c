package compilation

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver"
	"github.com/crytic/chainfixture/compilation/types"
	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	// abiFileSuffix is the suffix of a file holding a contract's ABI as a JSON array.
	abiFileSuffix = ".abi.json"

	// bytecodeFileSuffix is the suffix of a file holding a contract's init bytecode, either as {"object": "0x.."},
	// a JSON string or bare hex.
	bytecodeFileSuffix = ".bytecode.json"

	// combinedFileSuffix is the suffix of a framework artifact holding both the ABI and bytecode.
	combinedFileSuffix = ".json"
)

// ErrArtifactNotFound is returned when no artifact exists for a contract name.
var ErrArtifactNotFound = errors.New("contract artifact not found")

// combinedArtifact describes the fields read from framework artifacts such as those written by hardhat or foundry.
type combinedArtifact struct {
	Abi              json.RawMessage `json:"abi"`
	Bytecode         json.RawMessage `json:"bytecode"`
	DeployedBytecode json.RawMessage `json:"deployedBytecode"`
}

// bytecodeObject is the foundry representation of bytecode.
type bytecodeObject struct {
	Object string `json:"object"`
}

// LoadArtifact loads the named contract from directory. It looks for <Name>.abi.json and <Name>.bytecode.json
// first, then for a combined <Name>.json artifact, in directory itself and in a subdirectory named after the
// contract in lower case (e.g. contracts/forge/Forge.abi.json).
func LoadArtifact(directory string, name string) (*types.CompiledContract, error) {
	searchDirectories := []string{directory, filepath.Join(directory, strings.ToLower(name))}

	for _, searchDirectory := range searchDirectories {
		abiPath := filepath.Join(searchDirectory, name+abiFileSuffix)
		bytecodePath := filepath.Join(searchDirectory, name+bytecodeFileSuffix)
		if fileExists(abiPath) && fileExists(bytecodePath) {
			return loadSplitArtifact(name, abiPath, bytecodePath)
		}
	}
	for _, searchDirectory := range searchDirectories {
		combinedPath := filepath.Join(searchDirectory, name+combinedFileSuffix)
		if fileExists(combinedPath) {
			return loadCombinedArtifact(name, combinedPath)
		}
	}
	return nil, errors.Wrapf(ErrArtifactNotFound, "no artifact for %s in %s", name, directory)
}

// loadSplitArtifact loads a contract from separate ABI and bytecode files.
func loadSplitArtifact(name string, abiPath string, bytecodePath string) (*types.CompiledContract, error) {
	abiData, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	contractAbi, err := abi.JSON(bytes.NewReader(abiData))
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse the ABI of %s in %s", name, abiPath)
	}

	bytecodeData, err := os.ReadFile(bytecodePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	initBytecode, err := parseBytecode(bytecodeData)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse the bytecode of %s in %s", name, bytecodePath)
	}

	return &types.CompiledContract{
		Name:         name,
		Abi:          contractAbi,
		InitBytecode: initBytecode,
	}, nil
}

// loadCombinedArtifact loads a contract from a single framework artifact.
func loadCombinedArtifact(name string, path string) (*types.CompiledContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var artifact combinedArtifact
	if err = json.Unmarshal(data, &artifact); err != nil {
		return nil, errors.Wrapf(err, "could not parse artifact of %s in %s", name, path)
	}
	if len(artifact.Abi) == 0 || len(artifact.Bytecode) == 0 {
		return nil, errors.Errorf("artifact of %s in %s has no abi or bytecode", name, path)
	}

	contractAbi, err := abi.JSON(bytes.NewReader(artifact.Abi))
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse the ABI of %s in %s", name, path)
	}
	initBytecode, err := parseBytecode(artifact.Bytecode)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse the bytecode of %s in %s", name, path)
	}

	var runtimeBytecode []byte
	if len(artifact.DeployedBytecode) > 0 {
		runtimeBytecode, err = parseBytecode(artifact.DeployedBytecode)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse the deployed bytecode of %s in %s", name, path)
		}
	}

	return &types.CompiledContract{
		Name:            name,
		Abi:             contractAbi,
		InitBytecode:    initBytecode,
		RuntimeBytecode: runtimeBytecode,
	}, nil
}

// parseBytecode decodes bytecode given as {"object": "0x.."}, a JSON string or bare hex.
func parseBytecode(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)

	hexString := string(data)
	switch {
	case bytes.HasPrefix(data, []byte("{")):
		var object bytecodeObject
		if err := json.Unmarshal(data, &object); err != nil {
			return nil, errors.WithStack(err)
		}
		hexString = object.Object
	case bytes.HasPrefix(data, []byte("\"")):
		if err := json.Unmarshal(data, &hexString); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	hexString = strings.TrimPrefix(strings.TrimPrefix(hexString, "0x"), "0X")
	if hexString == "" {
		return nil, errors.New("bytecode is empty")
	}
	if strings.Contains(hexString, "__") {
		return nil, errors.New("bytecode contains unlinked library placeholders")
	}

	bytecode, err := hex.DecodeString(hexString)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bytecode, nil
}

// fileExists reports whether path refers to a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ArtifactLoader loads contract artifacts from a directory once, verifying the compiler version of each.
type ArtifactLoader struct {
	// directory is the directory artifacts are loaded from.
	directory string

	// constraint is the solc version constraint artifacts must satisfy. If nil, versions are not checked.
	constraint *semver.Constraints

	// constraintString is the unparsed constraint, for error messages.
	constraintString string

	// contracts caches loaded contracts by name.
	contracts map[string]*types.CompiledContract

	// contractsLock guards contracts.
	contractsLock sync.Mutex

	// logger describes the loader's sub-logger
	logger *logging.Logger
}

// NewArtifactLoader creates an ArtifactLoader over directory. versionConstraint is a semantic version constraint
// (e.g. ">= 0.8.0") artifacts must have been compiled with; an empty constraint disables the check.
func NewArtifactLoader(directory string, versionConstraint string) (*ArtifactLoader, error) {
	var constraint *semver.Constraints
	if versionConstraint != "" {
		var err error
		constraint, err = semver.NewConstraint(versionConstraint)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid compiler version constraint %q", versionConstraint)
		}
	}

	return &ArtifactLoader{
		directory:        directory,
		constraint:       constraint,
		constraintString: versionConstraint,
		contracts:        make(map[string]*types.CompiledContract),
		logger:           logging.GlobalLogger.NewSubLogger("module", logging.COMPILATION_SERVICE),
	}, nil
}

// Directory returns the directory artifacts are loaded from.
func (l *ArtifactLoader) Directory() string {
	return l.directory
}

// Load returns the named contract, loading it on first use.
func (l *ArtifactLoader) Load(name string) (*types.CompiledContract, error) {
	l.contractsLock.Lock()
	defer l.contractsLock.Unlock()

	if contract, ok := l.contracts[name]; ok {
		return contract, nil
	}

	contract, err := LoadArtifact(l.directory, name)
	if err != nil {
		return nil, err
	}
	if err = l.checkCompilerVersion(contract); err != nil {
		return nil, err
	}

	l.contracts[name] = contract
	l.logger.Debug("Loaded artifact of ", name, logging.StructuredLogInfo{
		"initBytecodeSize": len(contract.InitBytecode),
	})
	return contract, nil
}

// checkCompilerVersion verifies the solc version embedded in the contract satisfies the loader's constraint.
// Contracts without metadata are accepted.
func (l *ArtifactLoader) checkCompilerVersion(contract *types.CompiledContract) error {
	if l.constraint == nil {
		return nil
	}

	version, err := contract.CompilerVersion()
	if err != nil {
		return errors.Wrapf(err, "could not determine the compiler version of %s", contract.Name)
	}
	if version == nil {
		l.logger.Debug("Artifact of ", contract.Name, " carries no compiler metadata, skipping version check")
		return nil
	}
	if !l.constraint.Check(version) {
		return errors.Errorf("%s was compiled with solc %s, which does not satisfy %q", contract.Name, version, l.constraintString)
	}
	return nil
}

// Loaded returns the contracts loaded so far, sorted by name.
func (l *ArtifactLoader) Loaded() []*types.CompiledContract {
	l.contractsLock.Lock()
	defer l.contractsLock.Unlock()

	names := maps.Keys(l.contracts)
	slices.Sort(names)

	contracts := make([]*types.CompiledContract, len(names))
	for i, name := range names {
		contracts[i] = l.contracts[name]
	}
	return contracts
}

package utils

import (
	"encoding/json"

	"github.com/crytic/medusa-geth/params"
	"github.com/pkg/errors"
)

// CopyChainConfig returns a deep copy of config. Fork times and the blob schedule are pointers, so a shallow copy
// would let a test chain mutate the shared params.TestChainConfig.
func CopyChainConfig(config *params.ChainConfig) (*params.ChainConfig, error) {
	if config == nil {
		return nil, errors.New("cannot copy a nil chain config")
	}

	encoded, err := json.Marshal(config)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	copied := new(params.ChainConfig)
	if err = json.Unmarshal(encoded, copied); err != nil {
		return nil, errors.WithStack(err)
	}
	return copied, nil
}

package abiutils

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDescribeRevert verifies revert strings, panics and custom errors are decoded.
func TestDescribeRevert(t *testing.T) {
	reasonData, err := errorMethod.Inputs.Pack("Ownable: caller is not the owner")
	require.NoError(t, err)
	reasonData = append(append([]byte{}, errorMethod.ID...), reasonData...)
	assert.Equal(t, "Ownable: caller is not the owner", DescribeRevert(nil, vm.ErrExecutionReverted, reasonData))

	panicData, err := panicMethod.Inputs.Pack(big.NewInt(PanicCodeArithmeticUnderOverflow))
	require.NoError(t, err)
	panicData = append(append([]byte{}, panicMethod.ID...), panicData...)
	assert.Equal(t, "panic: arithmetic underflow or overflow", DescribeRevert(nil, vm.ErrExecutionReverted, panicData))
	assert.EqualValues(t, PanicCodeArithmeticUnderOverflow, GetSolidityPanicCode(vm.ErrExecutionReverted, panicData).Uint64())

	contractAbi, err := abi.JSON(strings.NewReader(`[{"inputs":[{"name":"needed","type":"uint256"}],"name":"InsufficientBalance","type":"error"}]`))
	require.NoError(t, err)
	customError := contractAbi.Errors["InsufficientBalance"]
	customData, err := customError.Inputs.Pack(big.NewInt(5))
	require.NoError(t, err)
	customData = append(append([]byte{}, customError.ID.Bytes()[:4]...), customData...)
	assert.Equal(t, "InsufficientBalance(5)", DescribeRevert(&contractAbi, vm.ErrExecutionReverted, customData))

	// Only reverts carry reasons.
	assert.Empty(t, DescribeRevert(&contractAbi, errors.New("out of gas"), reasonData))
	assert.Empty(t, DescribeRevert(nil, vm.ErrExecutionReverted, nil))
	assert.Equal(t, "unknown panic code(99)", GetPanicReason(99))
}

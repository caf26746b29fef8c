package abiutils

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/core/vm"
)

// An enum is defined below providing all `Panic(uint)` error codes returned in return data when the VM encounters
// an error in some cases.
// Reference: https://docs.soliditylang.org/en/latest/control-structures.html#panic-via-assert-and-error-via-require
const (
	PanicCodeCompilerInserted              = 0x00
	PanicCodeAssertFailed                  = 0x01
	PanicCodeArithmeticUnderOverflow       = 0x11
	PanicCodeDivideByZero                  = 0x12
	PanicCodeEnumTypeConversionOutOfBounds = 0x21
	PanicCodeIncorrectStorageAccess        = 0x22
	PanicCodePopEmptyArray                 = 0x31
	PanicCodeOutOfBoundsArrayAccess        = 0x32
	PanicCodeAllocateTooMuchMemory         = 0x41
	PanicCodeCallUninitializedVariable     = 0x51
)

// panicReasons maps panic codes to a description of their cause.
var panicReasons = map[uint64]string{
	PanicCodeCompilerInserted:              "compiler inserted panic",
	PanicCodeAssertFailed:                  "assertion failed",
	PanicCodeArithmeticUnderOverflow:       "arithmetic underflow or overflow",
	PanicCodeDivideByZero:                  "division by zero",
	PanicCodeEnumTypeConversionOutOfBounds: "enum access out of bounds",
	PanicCodeIncorrectStorageAccess:        "incorrect storage access",
	PanicCodePopEmptyArray:                 "pop on empty array",
	PanicCodeOutOfBoundsArrayAccess:        "out of bounds array access",
	PanicCodeAllocateTooMuchMemory:         "overallocation of memory",
	PanicCodeCallUninitializedVariable:     "call on uninitialized variable",
}

var (
	// panicMethod describes the Panic(uint256) error solc emits.
	panicMethod = newErrorMethod("Panic", "uint256")

	// errorMethod describes the Error(string) error emitted by require and revert with a reason.
	errorMethod = newErrorMethod("Error", "string")
)

// newErrorMethod builds a single-argument method definition used to decode builtin Solidity errors.
func newErrorMethod(name string, argumentType string) abi.Method {
	typ, _ := abi.NewType(argumentType, "", nil)
	return abi.NewMethod(name, name, abi.Function, "", false, false, []abi.Argument{
		{Name: "", Type: typ, Indexed: false},
	}, abi.Arguments{})
}

// GetSolidityPanicCode obtains a panic code from a VM error and return data, if possible.
// If the error and return data are not representative of a Panic, then nil is returned.
func GetSolidityPanicCode(returnError error, returnData []byte) *big.Int {
	if !errors.Is(returnError, vm.ErrExecutionReverted) || len(returnData) != 4+32 {
		return nil
	}
	if !bytes.Equal(returnData[:4], panicMethod.ID) {
		return nil
	}

	values, err := panicMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	panicCode, _ := values[0].(*big.Int)
	return panicCode
}

// GetSolidityRevertErrorString obtains an error message from a VM error and return data, if possible.
// If the error and return data are not representative of an Error, then nil is returned.
func GetSolidityRevertErrorString(returnError error, returnData []byte) *string {
	if !errors.Is(returnError, vm.ErrExecutionReverted) || len(returnData) <= 4 {
		return nil
	}
	if !bytes.Equal(returnData[:4], errorMethod.ID) {
		return nil
	}

	values, err := errorMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	errorMessage, ok := values[0].(string)
	if !ok {
		return nil
	}
	return &errorMessage
}

// GetSolidityCustomRevertError obtains a custom Solidity error returned, if one was and could be resolved.
// Returns the ABI error definition as well as its unpacked values. Or returns nil outputs if a custom error was not
// emitted, or could not be resolved.
func GetSolidityCustomRevertError(contractAbi *abi.ABI, returnError error, returnData []byte) (*abi.Error, []any) {
	if !errors.Is(returnError, vm.ErrExecutionReverted) || contractAbi == nil || len(returnData) < 4 {
		return nil, nil
	}

	for _, abiError := range contractAbi.Errors {
		if bytes.Equal(abiError.ID.Bytes()[:4], returnData[:4]) {
			matchedCustomError := abiError
			unpackedCustomErrorArgs, err := matchedCustomError.Inputs.Unpack(returnData[4:])
			if err == nil {
				return &matchedCustomError, unpackedCustomErrorArgs
			}
		}
	}
	return nil, nil
}

// GetPanicReason returns a description of a panic code, for example "panic: assertion failed".
func GetPanicReason(panicCode uint64) string {
	if reason, ok := panicReasons[panicCode]; ok {
		return "panic: " + reason
	}
	return fmt.Sprintf("unknown panic code(%v)", panicCode)
}

// DescribeRevert renders the reason a message reverted: a require/revert string, a Solidity panic or a custom error
// from contractAbi. contractAbi may be nil. An empty string is returned if the revert carries no recognizable reason.
func DescribeRevert(contractAbi *abi.ABI, returnError error, returnData []byte) string {
	if message := GetSolidityRevertErrorString(returnError, returnData); message != nil {
		return *message
	}
	if panicCode := GetSolidityPanicCode(returnError, returnData); panicCode != nil && panicCode.IsUint64() {
		return GetPanicReason(panicCode.Uint64())
	}
	if customError, args := GetSolidityCustomRevertError(contractAbi, returnError, returnData); customError != nil {
		renderedArgs := make([]string, len(args))
		for i, arg := range args {
			renderedArgs[i] = fmt.Sprintf("%v", arg)
		}
		return fmt.Sprintf("%s(%s)", customError.Name, strings.Join(renderedArgs, ", "))
	}
	return ""
}

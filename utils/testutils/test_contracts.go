package testutils

import (
	"github.com/crytic/medusa-geth/common"
)

// CounterRuntimeBytecode increments storage slot zero on every call:
// PUSH1 0 SLOAD PUSH1 1 ADD PUSH1 0 SSTORE STOP
var CounterRuntimeBytecode = common.FromHex("0x60005460010160005500")

// CounterInitBytecode deploys CounterRuntimeBytecode:
// PUSH1 10 PUSH1 12 PUSH1 0 CODECOPY PUSH1 10 PUSH1 0 RETURN
var CounterInitBytecode = append(common.FromHex("0x600a600c600039600a6000f3"), CounterRuntimeBytecode...)

// RevertingRuntimeBytecode reverts every call with empty return data:
// PUSH1 0 DUP1 REVERT
var RevertingRuntimeBytecode = common.FromHex("0x600080fd")

// RevertingInitBytecode deploys RevertingRuntimeBytecode.
var RevertingInitBytecode = append(common.FromHex("0x6004600c60003960046000f3"), RevertingRuntimeBytecode...)

// CounterSlot is the storage slot CounterRuntimeBytecode increments.
var CounterSlot = common.Hash{}

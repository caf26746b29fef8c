package utils

import (
	"github.com/crytic/medusa-geth/common"
)

// ShortAddress renders an address as its first and last two bytes, for compact console output.
func ShortAddress(address common.Address) string {
	hexAddress := address.Hex()
	return hexAddress[:6] + ".." + hexAddress[len(hexAddress)-4:]
}

package utils

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// etherDecimals is the number of decimals between wei and ether.
const etherDecimals = 18

// WeiToEther converts a wei amount into ether.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -etherDecimals)
}

// EtherToWei converts an ether amount into wei, truncating anything below one wei.
func EtherToWei(ether decimal.Decimal) *big.Int {
	return ether.Shift(etherDecimals).BigInt()
}

// FormatEther renders a wei amount as ether with trailing zeros removed, e.g. "1.5".
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return WeiToEther(wei.ToBig()).String()
}

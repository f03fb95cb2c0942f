package mathutil

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// NativeDecimals is the precision of the native currency and of the
	// tokens handled by default.
	NativeDecimals = 18
)

var (
	// OneNative is one unit of the native currency expressed in base units.
	OneNative = new(big.Int).Exp(big.NewInt(10), big.NewInt(NativeDecimals), nil)
)

// ParseUnits converts a human readable amount, like 0.05, into base units
// for the given precision. Amounts with more fractional digits than the
// precision or that are negative are rejected.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %s: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %s: must not be negative", amount)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf(
			"invalid amount %s: too many decimals, max %d", amount, decimals,
		)
	}
	return shifted.BigInt(), nil
}

// FormatUnits converts an amount in base units into its human readable form
// for the given precision.
func FormatUnits(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseBaseUnits parses an integer amount of base units.
func ParseBaseUnits(amount string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %s: must be a positive integer", amount)
	}
	return n, nil
}

package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseFlexibleInt parses an integer that a Tron-family node may return either
// as a decimal string ("123456") or as a "0x"-prefixed hexadecimal string.
// The result is an arbitrary-precision integer so that no chain quantity
// (balances, energy, bandwidth prices) can silently overflow.
func ParseFlexibleInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty numeric value")
	}

	base := 10
	trimmed := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		trimmed = s[2:]
	}

	n, ok := new(big.Int).SetString(trimmed, base)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}

	return n, nil
}

// ParseFlexibleDecimal parses a hex-or-decimal integer string into a
// decimal.Decimal, scaled by the given number of decimals (0 for values that
// are already whole units, e.g. native SUN amounts or block heights).
func ParseFlexibleDecimal(s string, decimals int32) (decimal.Decimal, error) {
	n, err := ParseFlexibleInt(s)
	if err != nil {
		return decimal.Decimal{}, err
	}

	d := decimal.NewFromBigInt(n, 0)
	if decimals > 0 {
		d = d.Shift(-decimals)
	}

	return d, nil
}

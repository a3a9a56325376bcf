package chain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// ErrInvalidAmount is returned for amounts that cannot be represented in satoshis.
var ErrInvalidAmount = walleterr.WithSuggestion(walleterr.ErrInvalidInput,
	"amounts are decimal coin values with at most 8 fractional digits, e.g. 0.015")

// ParseAmount converts a human-readable coin amount ("1.5") into satoshis.
// More than Decimals fractional digits, negative values and overflow are rejected.
func ParseAmount(amount string) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() || d.Exponent() < -Decimals {
		return 0, ErrInvalidAmount
	}
	sats := d.Shift(Decimals)
	if !sats.IsInteger() || sats.BigInt().BitLen() > 64 {
		return 0, ErrInvalidAmount
	}
	return sats.BigInt().Uint64(), nil
}

// FormatAmount renders satoshis as a coin amount without trailing zeros.
func FormatAmount(sats uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), -Decimals).String()
}

// FormatSignedAmount renders a possibly negative satoshi delta.
func FormatSignedAmount(sats int64) string {
	return decimal.NewFromInt(sats).Shift(-Decimals).String()
}

// WholeUnitsToSats converts a coin value reported by an indexer into
// satoshis, rounding half away from zero. Negative values become zero.
func WholeUnitsToSats(v decimal.Decimal) uint64 {
	d := v.Shift(Decimals).Round(0)
	if d.IsNegative() {
		return 0
	}
	return d.BigInt().Uint64()
}

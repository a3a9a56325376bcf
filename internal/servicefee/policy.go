// Package servicefee implements the platform service fee charged on
// outgoing payments and loads the fee schedule, coin price and miner fee
// rates from the platform API.
package servicefee

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
)

// Schedule is the service fee configuration published by the platform.
// MinFee and MaxFee are fiat amounts; FeeAddition is in satoshis.
type Schedule struct {
	Disabled    bool            `json:"disabled,omitempty"`
	Address     string          `json:"address"`
	Rate        decimal.Decimal `json:"fee"`
	MinFee      decimal.Decimal `json:"minFee"`
	MaxFee      decimal.Decimal `json:"maxFee"`
	FeeAddition uint64          `json:"feeAddition"`
}

// Policy applies a schedule at a fixed coin price. It implements
// btc.ServiceFee.
type Policy struct {
	enabled  bool
	address  string
	rate     decimal.Decimal
	min, max uint64
	dust     uint64
	addition uint64
}

// Disabled returns a policy that never adds a service fee output.
func Disabled() *Policy {
	return &Policy{}
}

// NewPolicy converts the fiat bounds of s to satoshis at price. A disabled
// schedule, a missing address or a non-positive price yields Disabled().
func NewPolicy(s Schedule, price decimal.Decimal, dust uint64) *Policy {
	if s.Disabled || s.Address == "" || !price.IsPositive() {
		return Disabled()
	}
	return &Policy{
		enabled:  true,
		address:  s.Address,
		rate:     s.Rate,
		min:      fiatToSats(s.MinFee, price),
		max:      fiatToSats(s.MaxFee, price),
		dust:     dust,
		addition: s.FeeAddition,
	}
}

// Enabled reports whether a service fee output is added.
func (p *Policy) Enabled() bool { return p.enabled }

// Address receives the service fee.
func (p *Policy) Address() string { return p.address }

// Bounds returns the minimum and maximum proportional fee in satoshis,
// before the dust floor and the fixed addition.
func (p *Policy) Bounds() (uint64, uint64) { return p.min, p.max }

// Compute returns the fee for sending principal: principal*rate rounded
// down, clamped to the bounds, raised to dust, plus the fixed addition.
func (p *Policy) Compute(principal uint64) uint64 {
	if !p.enabled {
		return 0
	}
	fee := satsDecimal(principal).Mul(p.rate).Floor().BigInt().Uint64()
	if fee < p.min {
		fee = p.min
	}
	if fee > p.max {
		fee = p.max
	}
	if fee < p.dust {
		fee = p.dust
	}
	return fee + p.addition
}

// fiatToSats converts a fiat amount to satoshis at price, rounding half up.
func fiatToSats(fiat, price decimal.Decimal) uint64 {
	sats := fiat.DivRound(price, chain.Decimals+8).Shift(chain.Decimals).Round(0)
	if sats.IsNegative() {
		return 0
	}
	return sats.BigInt().Uint64()
}

func satsDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

package servicefee

import (
	"context"
	"maps"

	"github.com/shopspring/decimal"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Static serves a configured schedule, price and fee rates without
// network access.
type Static struct {
	Schedule Schedule
	Price    decimal.Decimal
	Rates    FeeRates
}

// Policy applies the configured schedule.
func (s *Static) Policy(_ context.Context, dust uint64) (*Policy, error) {
	return NewPolicy(s.Schedule, s.Price, dust), nil
}

// FeeRates returns a copy of the configured rates.
func (s *Static) FeeRates(context.Context) (FeeRates, error) {
	if len(s.Rates) == 0 {
		return nil, walleterr.Wrap(walleterr.ErrInvalidFeeRate, "no static fee rates configured")
	}
	return maps.Clone(s.Rates), nil
}

// PolicyProvider yields the current service fee policy.
type PolicyProvider interface {
	Policy(ctx context.Context, dust uint64) (*Policy, error)
}

// RateProvider yields the named miner fee rates.
type RateProvider interface {
	FeeRates(ctx context.Context) (FeeRates, error)
}

// Combined takes the policy and the fee rates from different providers,
// e.g. a static schedule with platform fee rates.
type Combined struct {
	Policies PolicyProvider
	Rates    RateProvider
}

// Policy delegates to c.Policies.
func (c Combined) Policy(ctx context.Context, dust uint64) (*Policy, error) {
	return c.Policies.Policy(ctx, dust)
}

// FeeRates delegates to c.Rates.
func (c Combined) FeeRates(ctx context.Context) (FeeRates, error) {
	return c.Rates.FeeRates(ctx)
}

// None charges no service fee.
type None struct{}

// Policy returns the disabled policy.
func (None) Policy(context.Context, uint64) (*Policy, error) {
	return Disabled(), nil
}

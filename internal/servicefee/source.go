package servicefee

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Named miner fee rates.
const (
	RateMinimum = "minimum"
	RateDefault = "default"
	RateFastest = "fastest"
)

// FeeRates maps a rate name to satoshis per vbyte.
type FeeRates map[string]uint64

// Rate returns the rate called name.
func (r FeeRates) Rate(name string) (uint64, error) {
	v, ok := r[name]
	if !ok {
		return 0, walleterr.WithDetails(walleterr.ErrInvalidFeeRate, map[string]string{"fee_rate": name})
	}
	return v, nil
}

// Names returns the known rate names in display order.
func (r FeeRates) Names() []string {
	var out []string
	for _, n := range []string{RateMinimum, RateDefault, RateFastest} {
		if _, ok := r[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Source reads the platform API for one crypto.
type Source struct {
	transport *chain.Transport
	crypto    string
	currency  string
}

// NewSource returns a Source. crypto is the platform id such as
// "bitcoin@bitcoin"; currency is the fiat the schedule bounds are in.
func NewSource(transport *chain.Transport, crypto, currency string) *Source {
	if currency == "" {
		currency = "USD"
	}
	return &Source{transport: transport, crypto: crypto, currency: currency}
}

// CryptoID returns the platform id of a chain's native coin.
func CryptoID(id chain.ID) string {
	return fmt.Sprintf("%s@%s", id, id)
}

// Schedule fetches the service fee schedule.
func (s *Source) Schedule(ctx context.Context) (Schedule, error) {
	var sched Schedule
	err := s.transport.GetJSON(ctx, "api/v4/csfee", url.Values{"crypto": {s.crypto}}, &sched)
	return sched, err
}

// Price fetches the coin price in the configured currency.
func (s *Source) Price(ctx context.Context) (decimal.Decimal, error) {
	var reply struct {
		Price decimal.Decimal `json:"price"`
	}
	query := url.Values{"crypto": {s.crypto}, "currency": {s.currency}}
	if err := s.transport.GetJSON(ctx, "api/v4/price", query, &reply); err != nil {
		return decimal.Zero, err
	}
	return reply.Price, nil
}

// Policy fetches the schedule and, when it is enabled, the price.
func (s *Source) Policy(ctx context.Context, dust uint64) (*Policy, error) {
	sched, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	if sched.Disabled || sched.Address == "" {
		return Disabled(), nil
	}
	price, err := s.Price(ctx)
	if err != nil {
		return nil, err
	}
	return NewPolicy(sched, price, dust), nil
}

// FeeRates fetches the named miner fee rates. Unknown names are ignored.
func (s *Source) FeeRates(ctx context.Context) (FeeRates, error) {
	var reply []struct {
		Name  string `json:"name"`
		Value uint64 `json:"value"`
	}
	if err := s.transport.GetJSON(ctx, "api/v4/fees", url.Values{"crypto": {s.crypto}}, &reply); err != nil {
		return nil, err
	}
	rates := make(FeeRates, len(reply))
	for _, r := range reply {
		switch r.Name {
		case RateMinimum, RateDefault, RateFastest:
			rates[r.Name] = r.Value
		}
	}
	return rates, nil
}

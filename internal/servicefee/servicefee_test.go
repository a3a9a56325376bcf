package servicefee

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

const feeAddress = "bcrt1qfrl9p7sp00xe8w2nk0krrjpxgventn24msjs7n"

func testSchedule() Schedule {
	return Schedule{
		Address:     feeAddress,
		Rate:        decimal.RequireFromString("0.005"),
		MinFee:      decimal.RequireFromString("0.3"),
		MaxFee:      decimal.RequireFromString("100"),
		FeeAddition: 1920,
	}
}

func TestPolicyBounds(t *testing.T) {
	t.Parallel()

	p := NewPolicy(testSchedule(), decimal.RequireFromString("27415.24"), 546)
	require.True(t, p.Enabled())
	assert.Equal(t, feeAddress, p.Address())

	lo, hi := p.Bounds()
	assert.Equal(t, uint64(1094), lo)
	assert.Equal(t, uint64(364761), hi)
}

func TestPolicyCompute(t *testing.T) {
	t.Parallel()

	p := NewPolicy(testSchedule(), decimal.RequireFromString("27415.24"), 546)
	tests := []struct {
		name      string
		principal uint64
		want      uint64
	}{
		{"below minimum", 10_000, 1094 + 1920},
		{"proportional", 1_000_000, 5000 + 1920},
		{"rounds down", 1_000_199, 5000 + 1920},
		{"capped", 250_000_000, 364761 + 1920},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, p.Compute(tc.principal))
		})
	}
}

func TestPolicyDustFloor(t *testing.T) {
	t.Parallel()

	// At this price the minimum is 3 sats, under the dust threshold.
	p := NewPolicy(testSchedule(), decimal.RequireFromString("10000000"), 546)
	assert.Equal(t, uint64(546+1920), p.Compute(1))
}

func TestPolicyDisabled(t *testing.T) {
	t.Parallel()

	off := testSchedule()
	off.Disabled = true
	for _, p := range []*Policy{
		Disabled(),
		NewPolicy(off, decimal.NewFromInt(1), 546),
		NewPolicy(testSchedule(), decimal.Zero, 546),
	} {
		assert.False(t, p.Enabled())
		assert.Zero(t, p.Compute(1_000_000))
	}
}

func newSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tr, err := chain.NewTransport(chain.TransportOptions{
		BaseURL:  srv.URL,
		Name:     "platform",
		Throttle: chain.NewThrottle(1000, 100),
		Backoff:  chain.Backoff{Attempts: 1, Base: time.Millisecond, Max: time.Millisecond},
	})
	require.NoError(t, err)
	return NewSource(tr, CryptoID(chain.Bitcoin), "")
}

func TestSourcePolicy(t *testing.T) {
	t.Parallel()

	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bitcoin@bitcoin", r.URL.Query().Get("crypto"))
		switch r.URL.Path {
		case "/api/v4/csfee":
			_, _ = w.Write([]byte(`{"address":"` + feeAddress + `","fee":0.005,"minFee":0.3,"maxFee":100,"feeAddition":1920}`))
		case "/api/v4/price":
			assert.Equal(t, "USD", r.URL.Query().Get("currency"))
			_, _ = w.Write([]byte(`{"price":27415.24}`))
		default:
			http.NotFound(w, r)
		}
	})

	p, err := src.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	assert.Equal(t, uint64(364761+1920), p.Compute(300_000_000))
}

func TestSourceDisabledSkipsPrice(t *testing.T) {
	t.Parallel()

	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/csfee" {
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"disabled":true}`))
	})

	p, err := src.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
}

func TestSourceFeeRates(t *testing.T) {
	t.Parallel()

	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/fees", r.URL.Path)
		_, _ = w.Write([]byte(`[{"name":"minimum","value":1},{"name":"default","value":7},{"name":"fastest","value":20},{"name":"turbo","value":99}]`))
	})

	rates, err := src.FeeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{RateMinimum, RateDefault, RateFastest}, rates.Names())

	v, err := rates.Rate(RateDefault)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = rates.Rate("turbo")
	require.ErrorIs(t, err, walleterr.ErrInvalidFeeRate)
}

func TestStaticSource(t *testing.T) {
	t.Parallel()

	s := &Static{
		Schedule: testSchedule(),
		Price:    decimal.RequireFromString("27415.24"),
		Rates:    FeeRates{RateDefault: 3},
	}
	p, err := s.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.Equal(t, uint64(1094+1920), p.Compute(10_000))

	rates, err := s.FeeRates(context.Background())
	require.NoError(t, err)
	rates[RateDefault] = 99
	again, err := s.FeeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), again[RateDefault])

	off := &Static{Schedule: Schedule{Disabled: true}}
	p, err = off.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	_, err = off.FeeRates(context.Background())
	require.ErrorIs(t, err, walleterr.ErrInvalidFeeRate)
}

func TestCombinedSource(t *testing.T) {
	t.Parallel()

	c := Combined{
		Policies: &Static{Schedule: Schedule{Disabled: true}},
		Rates:    &Static{Rates: FeeRates{RateFastest: 20}},
	}
	p, err := c.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	rates, err := c.FeeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{RateFastest}, rates.Names())
}

func TestNoneSource(t *testing.T) {
	t.Parallel()

	p, err := None{}.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Zero(t, p.Compute(1_000_000))
}

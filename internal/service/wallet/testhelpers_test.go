package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/indexer"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/utxostore"
)

const testSeedHex = "2b48a48a752f6c49772bf97205660411cd2163fe6ce2de19537e9c94d3648c85" +
	"c0d7f405660c20253115aaf1799b1c41cdd62b4cfbb6845bc9475495fc64b874"

// Addresses derived from the test seed on regtest.
const (
	p2wpkh0       = "bcrt1q5ud5zsng5k47n2ndvlavtm0zswdkf8j6r4qglp"
	p2wpkh1       = "bcrt1q4qqztfxyyqhc6scx005h4j62xa2skrqta3g3rh"
	p2wpkh2       = "bcrt1qq76v3m62vxdllc2jry7n4n2vc5pjz2mx2f5zup"
	p2sh0         = "2Mxn69GNwjnu2UedKPoMNUrkGFH5CtW3dxF"
	p2pkh0        = "mpRkCswzPqyiamEPbBkEen1zWjUFEh5Hrs"
	destP2PKH     = "mtHcCKvxPXL6XLXQsvbZ9Cv7ShdAWz7eid"
	destP2SH      = "2NERD15JAX3tMguSDEdpbU79JJR8rLKmQT1"
	destP2WPKH    = "bcrt1qcgrm42khvjl829x0y43y0ua9w28srdksnhtte6"
	destP2WSH     = "bcrt1qhxtthndg70cthfasy8y4qlk9h7r3006azn9md0fad5dg9hh76nkq8d46nh"
	csFeeAddress  = "bcrt1qfrl9p7sp00xe8w2nk0krrjpxgventn24msjs7n"
	btcSats       = 100_000_000
	confirmedConf = 300
)

// Private key 1 and its addresses.
const (
	importWIF             = "cMahea7zqjxrtgAbB7LSGbcQUr1uX1ojuat9jZodMN87JcbXMTcA"
	importWIFUncompressed = "91avARGdfge8E4tZfYLoxeJ5sGBdNJQH4kvjJoQFacbgwmaKkrx"
	importP2WPKH          = "bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080"
	importP2SH            = "2NAUYAHhujozruyzpsFRP63mbrdaU5wnEpN"
	importP2PKH           = "mrCDrCybB6J1vRfbwM5hemdJz73FwDBC8r"
	importP2PKHUncomp     = "mtoKs9V381UAhUia3d7Vb9GNak8Qvmcsme"
)

func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)
	return seed
}

func regtest(t *testing.T) *btc.Network {
	t.Helper()
	net, err := btc.LookupNetwork(chain.Bitcoin, true)
	require.NoError(t, err)
	return net
}

func txid(c string) string {
	return strings.Repeat(c, 64)
}

// fakeIndexer serves address usage and unspents from memory. An address
// with unspents or raw transactions counts as used.
type fakeIndexer struct {
	mu         sync.Mutex
	net        *btc.Network
	used       map[string][]string
	unspents   map[string][]btc.Unspent
	raws       map[string]indexer.RawTx
	order      []string
	broadcasts []string
	infoErr    error
}

func newFakeIndexer(t *testing.T) *fakeIndexer {
	t.Helper()
	return &fakeIndexer{
		net:      regtest(t),
		used:     make(map[string][]string),
		unspents: make(map[string][]btc.Unspent),
		raws:     make(map[string]indexer.RawTx),
	}
}

// fund adds an unspent of value on address with the given confirmations.
func (f *fakeIndexer) fund(address string, value uint64, confirmations uint32) btc.Unspent {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := btc.Unspent{
		Address:       address,
		Type:          btc.TypeOf(address, f.net),
		Confirmations: confirmations,
		TxID:          txid(fmt.Sprintf("%x", len(f.order)%16)),
		Vout:          uint32(len(f.unspents[address])), //nolint:gosec // test data
		Value:         value,
	}
	f.order = append(f.order, u.TxID)
	f.unspents[address] = append(f.unspents[address], u)
	f.used[address] = append(f.used[address], u.TxID)
	return u
}

// add stores u as given.
func (f *fakeIndexer) add(u btc.Unspent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unspents[u.Address] = append(f.unspents[u.Address], u)
	f.used[u.Address] = append(f.used[u.Address], u.TxID)
}

// markUsed records address as used by id without leaving an unspent.
func (f *fakeIndexer) markUsed(address, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used[address] = append(f.used[address], id)
}

func (f *fakeIndexer) AddressInfo(_ context.Context, addresses []string) ([]indexer.AddressInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	out := make([]indexer.AddressInfo, 0, len(addresses))
	for _, a := range addresses {
		ids := f.used[a]
		out = append(out, indexer.AddressInfo{
			Address: a,
			Balance: btc.SumValues(f.unspents[a]),
			TxCount: len(ids),
			TxIDs:   slices.Clone(ids),
		})
	}
	return out, nil
}

func (f *fakeIndexer) Unspents(_ context.Context, addresses []string) ([]btc.Unspent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []btc.Unspent
	for _, a := range addresses {
		out = append(out, f.unspents[a]...)
	}
	return out, nil
}

func (f *fakeIndexer) SortedTxIDs(_ context.Context, txIDs []string) ([]string, error) {
	out := slices.Clone(txIDs)
	slices.Sort(out)
	slices.Reverse(out)
	return out, nil
}

func (f *fakeIndexer) Transactions(_ context.Context, txIDs []string) ([]indexer.RawTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]indexer.RawTx, 0, len(txIDs))
	for _, id := range txIDs {
		raw, ok := f.raws[id]
		if !ok {
			raw = indexer.RawTx{TxID: id, Confirmations: confirmedConf}
		}
		out = append(out, raw)
	}
	return out, nil
}

func (f *fakeIndexer) Broadcast(_ context.Context, rawHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rawHex == "" {
		return "", errors.New("empty transaction")
	}
	f.broadcasts = append(f.broadcasts, rawHex)
	return fmt.Sprintf("broadcast-%d", len(f.broadcasts)), nil
}

func (f *fakeIndexer) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

// fakeFees serves the regtest service fee schedule at a fixed price.
type fakeFees struct {
	policy *servicefee.Policy
}

func newFakeFees(t *testing.T) *fakeFees {
	t.Helper()
	schedule := servicefee.Schedule{
		Address:     csFeeAddress,
		Rate:        decimal.RequireFromString("0.005"),
		MinFee:      decimal.RequireFromString("0.3"),
		MaxFee:      decimal.RequireFromString("100"),
		FeeAddition: 1920,
	}
	price := decimal.RequireFromString("27415.24")
	return &fakeFees{policy: servicefee.NewPolicy(schedule, price, regtest(t).DustThreshold)}
}

func (f *fakeFees) Policy(context.Context, uint64) (*servicefee.Policy, error) {
	return f.policy, nil
}

func (f *fakeFees) FeeRates(context.Context) (servicefee.FeeRates, error) {
	return servicefee.FeeRates{servicefee.RateDefault: 1, servicefee.RateFastest: 10}, nil
}

type testWallet struct {
	*Service
	idx   *fakeIndexer
	state *utxostore.State
	seed  []byte
}

type walletOption func(*Config)

func withoutServiceFee() walletOption {
	return func(c *Config) { c.Fees = nil }
}

func withTxPerPage(n int) walletOption {
	return func(c *Config) { c.TxPerPage = n }
}

// newTestWallet creates a wallet from the test seed with the default fee
// rate at 1 sat/vbyte. It is not loaded.
func newTestWallet(t *testing.T, idx *fakeIndexer, opts ...walletOption) *testWallet {
	t.Helper()
	state := utxostore.NewState(utxostore.NewMemory())
	cfg := &Config{
		Network: regtest(t),
		Indexer: idx,
		Fees:    newFakeFees(t),
		State:   state,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)

	seed := testSeed(t)
	require.NoError(t, svc.Create(seed))
	svc.SetFeeRates(servicefee.FeeRates{servicefee.RateDefault: 1})
	return &testWallet{Service: svc, idx: idx, state: state, seed: seed}
}

// loadedWallet returns a loaded wallet holding the given unspents.
func loadedWallet(t *testing.T, idx *fakeIndexer, opts ...walletOption) *testWallet {
	t.Helper()
	w := newTestWallet(t, idx, opts...)
	require.NoError(t, w.Load(context.Background()))
	return w
}

package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/config"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/metrics"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
)

const (
	testPassword = "correct horse battery"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testSeedHex  = "2b48a48a752f6c49772bf97205660411cd2163fe6ce2de19537e9c94d3648c85" +
		"c0d7f405660c20253115aaf1799b1c41cdd62b4cfbb6845bc9475495fc64b874"

	// First two receive addresses of the test seed's native segwit account.
	p2wpkh0 = "bcrt1q5ud5zsng5k47n2ndvlavtm0zswdkf8j6r4qglp"
	p2wpkh1 = "bcrt1q4qqztfxyyqhc6scx005h4j62xa2skrqta3g3rh"
)

// setupCLI replaces the package state with a regtest configuration in a
// temporary home and a JSON formatter writing to the returned buffer.
func setupCLI(t *testing.T) *bytes.Buffer {
	t.Helper()

	prevCfg, prevLogger, prevFormatter, prevRegistry := cfg, logger, formatter, registry
	prevWallet, prevPayYes, prevPayFeeRate := walletName, payYes, payFeeRate
	t.Cleanup(func() {
		cfg, logger, formatter, registry = prevCfg, prevLogger, prevFormatter, prevRegistry
		walletName, payYes, payFeeRate = prevWallet, prevPayYes, prevPayFeeRate
	})

	cfg = config.Defaults()
	cfg.Home = t.TempDir()
	cfg.Network.Regtest = true
	cfg.Fees.Source = "static"
	cfg.Fees.Rates = map[string]uint64{"minimum": 1, "default": 2, "fastest": 5}
	cfg.ServiceFee.Source = "off"
	cfg.Indexer.RequestsPerSecond = 1000
	cfg.Indexer.Burst = 1000
	cfg.Indexer.Retries = 0
	require.NoError(t, cfg.Validate())

	logger = config.NullLogger()
	registry = metrics.New()
	walletName = "main"

	buf := &bytes.Buffer{}
	formatter = output.NewFormatter(output.FormatJSON, buf)
	return buf
}

// withMockPrompts answers every password prompt with password and every
// confirmation with confirm.
func withMockPrompts(t *testing.T, password string, confirm bool) {
	t.Helper()

	prevPassword, prevNew, prevPassphrase := promptPasswordFn, promptNewPasswordFn, promptPassphraseFn
	prevMnemonic, prevConfirm := promptMnemonicFn, promptConfirmFn
	t.Cleanup(func() {
		promptPasswordFn, promptNewPasswordFn, promptPassphraseFn = prevPassword, prevNew, prevPassphrase
		promptMnemonicFn, promptConfirmFn = prevMnemonic, prevConfirm
	})

	promptPasswordFn = func(string) ([]byte, error) { return []byte(password), nil }
	promptNewPasswordFn = func() ([]byte, error) { return []byte(password), nil }
	promptPassphraseFn = func() (string, error) { return "", nil }
	promptMnemonicFn = func() (string, error) { return testMnemonic, nil }
	promptConfirmFn = func(string) bool { return confirm }
}

func regtestNetwork(t *testing.T) *btc.Network {
	t.Helper()
	net, err := btc.LookupNetwork(chain.Bitcoin, true)
	require.NoError(t, err)
	return net
}

// saveTestWallet stores the test seed as wallet name.
func saveTestWallet(t *testing.T, name string) *wallet.Wallet {
	t.Helper()
	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	net := regtestNetwork(t)
	record, err := wallet.NewWallet(name, seed, net, wallet.Paths(net, nil))
	require.NoError(t, err)

	storage, _, err := walletStorage()
	require.NoError(t, err)
	require.NoError(t, storage.Save(record, seed, []byte(testPassword)))
	return record
}

// decodeOutput unmarshals the JSON written to buf into v.
func decodeOutput(t *testing.T, buf *bytes.Buffer, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(buf.Bytes(), v))
}

type fakeUnspent struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Satoshis      uint64 `json:"satoshis"`
	Confirmations uint32 `json:"confirmations"`
}

// fakeNode serves the address endpoints of the node API from memory.
type fakeNode struct {
	mu         sync.Mutex
	unspents   map[string][]fakeUnspent
	broadcasts []string
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	node := &fakeNode{unspents: make(map[string][]fakeUnspent)}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	cfg.Indexer.URL = srv.URL
	return node
}

func (f *fakeNode) fund(address string, sats uint64, confirmations uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unspents[address] = append(f.unspents[address], fakeUnspent{
		TxID:          strings.Repeat("a", 63) + string(rune('0'+len(f.unspents))),
		Vout:          0,
		Satoshis:      sats,
		Confirmations: confirmations,
	})
}

func (f *fakeNode) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/tx/send" {
		var body struct {
			RawTx string `json:"rawtx"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RawTx == "" {
			http.Error(w, "bad transaction", http.StatusBadRequest)
			return
		}
		f.broadcasts = append(f.broadcasts, body.RawTx)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"txid": "accepted"})
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/api/v1/addrs/")
	if !ok || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list, utxo := strings.CutSuffix(rest, "/utxo")
	addresses := strings.Split(list, ",")

	w.Header().Set("Content-Type", "application/json")
	if utxo {
		reply := []map[string]any{}
		for _, a := range addresses {
			for _, u := range f.unspents[a] {
				reply = append(reply, map[string]any{
					"address":       a,
					"txid":          u.TxID,
					"vout":          u.Vout,
					"satoshis":      u.Satoshis,
					"confirmations": u.Confirmations,
				})
			}
		}
		_ = json.NewEncoder(w).Encode(reply)
		return
	}

	reply := make([]map[string]any, 0, len(addresses))
	for _, a := range addresses {
		var balance uint64
		txs := []string{}
		for _, u := range f.unspents[a] {
			balance += u.Satoshis
			txs = append(txs, u.TxID)
		}
		reply = append(reply, map[string]any{
			"addrStr":                 a,
			"balance":                 float64(balance) / 1e8,
			"unconfirmedBalance":      0,
			"txApperances":            len(txs),
			"unconfirmedTxApperances": 0,
			"transactions":            txs,
		})
	}
	_ = json.NewEncoder(w).Encode(reply)
}

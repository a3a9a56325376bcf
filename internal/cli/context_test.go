package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/config"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	walletsvc "github.com/CoinSpace/cs-bitcoin-wallet/internal/service/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

const (
	destP2WPKH   = "bcrt1qcgrm42khvjl829x0y43y0ua9w28srdksnhtte6"
	csFeeAddress = "bcrt1qfrl9p7sp00xe8w2nk0krrjpxgventn24msjs7n"
	btcSats      = 100_000_000
)

func TestNewFeeSourceStatic(t *testing.T) {
	setupCLI(t)
	cfg.ServiceFee = staticServiceFee()

	src, err := newFeeSource(regtestNetwork(t))
	require.NoError(t, err)

	rates, err := src.FeeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rates["default"])

	policy, err := src.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.True(t, policy.Enabled())
	assert.Equal(t, csFeeAddress, policy.Address())
	assert.Positive(t, policy.Compute(btcSats))
}

func TestNewFeeSourceOff(t *testing.T) {
	setupCLI(t)

	src, err := newFeeSource(regtestNetwork(t))
	require.NoError(t, err)
	policy, err := src.Policy(context.Background(), 546)
	require.NoError(t, err)
	assert.False(t, policy.Enabled())
	assert.Zero(t, policy.Compute(btcSats))
}

func TestStaticScheduleInvalid(t *testing.T) {
	setupCLI(t)
	cfg.ServiceFee = staticServiceFee()
	cfg.ServiceFee.MaxFee = "lots"

	_, err := staticSchedule()
	require.ErrorIs(t, err, walleterr.ErrConfigInvalid)
	assert.Equal(t, "lots", output.Describe(err).Details["service_fee.max_fee"])
}

func TestOpenState(t *testing.T) {
	for _, backend := range []string{"file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			setupCLI(t)
			cfg.Storage.Backend = backend
			dir := t.TempDir()

			kv, err := openState(dir, "main")
			require.NoError(t, err)
			require.NoError(t, kv.Set("balance", "42"))
			require.NoError(t, kv.Save())
			require.NoError(t, kv.Close())

			kv, err = openState(dir, "main")
			require.NoError(t, err)
			defer func() { _ = kv.Close() }()
			v, ok, err := kv.Get("balance")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "42", v)
		})
	}
}

func TestOpenEngineMissingWallet(t *testing.T) {
	setupCLI(t)
	_, err := openEngine(context.Background(), false)
	require.ErrorIs(t, err, walleterr.ErrWalletNotFound)
}

func TestOpenEngineNetworkMismatch(t *testing.T) {
	setupCLI(t)
	saveTestWallet(t, "main")

	_, dir, err := walletStorage()
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "main.wallet"))
	require.NoError(t, err)

	// A regtest wallet file copied into the mainnet directory.
	cfg.Network.Regtest = false
	mainnetDir, err := cfg.WalletDir()
	require.NoError(t, err)
	require.NotEqual(t, dir, mainnetDir)
	require.NoError(t, os.MkdirAll(mainnetDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(mainnetDir, "main.wallet"), data, 0o600))

	_, err = openEngine(context.Background(), false)
	require.ErrorIs(t, err, walleterr.ErrUnsupportedNetwork)
}

func TestOpenEngineLoads(t *testing.T) {
	setupCLI(t)
	node := newFakeNode(t)
	saveTestWallet(t, "main")
	node.fund(p2wpkh0, btcSats, 300)

	e, err := openEngine(context.Background(), true)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, walletsvc.StateLoaded, e.State())
	assert.Equal(t, uint64(btcSats), e.Balance())
	address, err := e.Address()
	require.NoError(t, err)
	assert.Equal(t, p2wpkh1, address)
}

func TestServiceConfigAddressTypeOverride(t *testing.T) {
	setupCLI(t)
	record := saveTestWallet(t, "main")
	cfg.Wallet.AddressType = "p2pkh"

	_, dir, err := walletStorage()
	require.NoError(t, err)
	svcCfg, state, err := serviceConfig(regtestNetwork(t), dir, record)
	require.NoError(t, err)
	defer func() { _ = state.Close() }()
	assert.Equal(t, "p2pkh", svcCfg.AddressType.String())
	assert.Equal(t, cfg.Wallet.TxPerPage, svcCfg.TxPerPage)
}

func TestTxURL(t *testing.T) {
	setupCLI(t)
	newFakeNode(t)
	saveTestWallet(t, "main")

	e, err := openEngine(context.Background(), false)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "https://regtest.example.invalid/tx/abc", txURL(e, "abc"))
	assert.Equal(t, chain.Bitcoin, e.Network().Chain)
}

func staticServiceFee() config.ServiceFeeConfig {
	return config.ServiceFeeConfig{
		Source:      "static",
		Address:     csFeeAddress,
		Rate:        "0.005",
		MinFee:      "0.3",
		MaxFee:      "100",
		FeeAddition: 1920,
		Price:       "27415.24",
	}
}

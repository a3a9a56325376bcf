package cli

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/indexer"
	walletsvc "github.com/CoinSpace/cs-bitcoin-wallet/internal/service/wallet"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/utxostore"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/version"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// commandTimeout bounds one command's network work, discovery included.
const commandTimeout = 3 * time.Minute

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}

// engine is an opened wallet service plus the files backing it.
type engine struct {
	*walletsvc.Service

	record  *wallet.Wallet
	storage wallet.Storage
	state   utxostore.KV
}

// Close flushes and releases the state store.
func (e *engine) Close() {
	if e.state != nil {
		_ = e.state.Close()
	}
}

// unlock asks for the wallet password and decrypts the seed. The caller
// destroys the secret.
func (e *engine) unlock() (*wallet.Secret, error) {
	password, err := promptPasswordFn("Enter wallet password: ")
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(password)

	_, secret, err := e.storage.Load(e.record.Name, password)
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// withSeed runs fn with the decrypted seed and wipes it afterwards.
func (e *engine) withSeed(fn func(seed []byte) error) error {
	secret, err := e.unlock()
	if err != nil {
		return err
	}
	defer secret.Destroy()
	return fn(secret.Bytes())
}

// walletStorage returns the storage for the configured network.
func walletStorage() (*wallet.FileStorage, string, error) {
	dir, err := cfg.WalletDir()
	if err != nil {
		return nil, "", err
	}
	return wallet.NewFileStorage(dir), dir, nil
}

// openEngine opens the selected wallet, loads fee rates and, when load is
// set, runs discovery. A wallet whose derivation paths changed is
// re-derived from its seed, which prompts for the password.
func openEngine(ctx context.Context, load bool) (*engine, error) {
	net, err := cfg.ChainNetwork()
	if err != nil {
		return nil, err
	}
	storage, dir, err := walletStorage()
	if err != nil {
		return nil, err
	}
	record, err := storage.LoadMetadata(walletName)
	if err != nil {
		return nil, err
	}
	if record.Chain != net.Chain || record.Regtest != net.Regtest {
		return nil, walleterr.WithDetails(walleterr.ErrUnsupportedNetwork, map[string]string{
			"wallet":  record.Name,
			"network": net.Name(),
		})
	}

	svcCfg, state, err := serviceConfig(net, dir, record)
	if err != nil {
		return nil, err
	}
	svc, err := walletsvc.NewService(svcCfg)
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	e := &engine{Service: svc, record: record, storage: storage, state: state}

	if err := e.initialize(); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.LoadFeeRates(ctx); err != nil {
		e.Close()
		return nil, err
	}
	if load {
		if err := e.Load(ctx); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *engine) initialize() error {
	if err := e.Open(e.record.PublicKey); err != nil {
		return err
	}
	if e.State() != walletsvc.StateNeedInitialization {
		return nil
	}
	logger.Debug("wallet %s needs re-derivation", e.record.Name)
	return e.withSeed(e.Create)
}

// serviceConfig wires the indexer, fee source and state store for record.
func serviceConfig(net *btc.Network, dir string, record *wallet.Wallet) (*walletsvc.Config, utxostore.KV, error) {
	addressType := record.AddressType
	if cfg.Wallet.AddressType != "" {
		t, err := cfg.AddressType(net)
		if err != nil {
			return nil, nil, err
		}
		addressType = t
	}

	indexerTransport, err := newTransport("indexer", cfg.Indexer.URL)
	if err != nil {
		return nil, nil, err
	}
	fees, err := newFeeSource(net)
	if err != nil {
		return nil, nil, err
	}
	state, err := openState(dir, record.Name)
	if err != nil {
		return nil, nil, err
	}

	return &walletsvc.Config{
		Network:     net,
		Indexer:     indexer.New(indexerTransport, net),
		Fees:        fees,
		State:       utxostore.NewState(state),
		AddressType: addressType,
		Paths:       cfg.Network.Paths,
		TxPerPage:   cfg.Wallet.TxPerPage,
		MaxInputs:   cfg.Wallet.MaxInputs,
		Metrics:     registry,
		Logger:      logger.With("wallet"),
	}, state, nil
}

// newTransport builds a throttled, retrying client for one API.
func newTransport(name, baseURL string) (*chain.Transport, error) {
	backoff := chain.DefaultBackoff()
	if cfg.Indexer.Retries > 0 {
		backoff.Attempts = cfg.Indexer.Retries + 1
	}
	timeout := time.Duration(cfg.Indexer.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return chain.NewTransport(chain.TransportOptions{
		BaseURL:    baseURL,
		Name:       name,
		HTTPClient: &http.Client{Timeout: timeout},
		Throttle:   chain.NewThrottle(cfg.Indexer.RequestsPerSecond, cfg.Indexer.Burst),
		Backoff:    backoff,
		Observer:   registry,
		UserAgent:  version.UserAgent(),
	})
}

// newFeeSource combines the configured service fee and fee rate sources.
func newFeeSource(net *btc.Network) (walletsvc.FeeSource, error) {
	var platform *servicefee.Source
	if cfg.ServiceFee.Source == "platform" || cfg.Fees.Source == "platform" {
		t, err := newTransport("platform", cfg.Platform.URL)
		if err != nil {
			return nil, err
		}
		platform = servicefee.NewSource(t, servicefee.CryptoID(net.Chain), cfg.Platform.Currency)
	}

	var policies servicefee.PolicyProvider = platform
	switch cfg.ServiceFee.Source {
	case "off":
		policies = servicefee.None{}
	case "static":
		static, err := staticSchedule()
		if err != nil {
			return nil, err
		}
		policies = static
	}

	var rates servicefee.RateProvider = platform
	if cfg.Fees.Source == "static" {
		rates = &servicefee.Static{Rates: servicefee.FeeRates(cfg.Fees.Rates)}
	}
	return servicefee.Combined{Policies: policies, Rates: rates}, nil
}

// staticSchedule reads the service fee schedule from the config.
func staticSchedule() (*servicefee.Static, error) {
	sf := cfg.ServiceFee
	fields := map[string]string{
		"service_fee.rate":    sf.Rate,
		"service_fee.min_fee": sf.MinFee,
		"service_fee.max_fee": sf.MaxFee,
		"service_fee.price":   sf.Price,
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for field, raw := range fields {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{field: raw})
		}
		parsed[field] = v
	}
	return &servicefee.Static{
		Schedule: servicefee.Schedule{
			Address:     sf.Address,
			Rate:        parsed["service_fee.rate"],
			MinFee:      parsed["service_fee.min_fee"],
			MaxFee:      parsed["service_fee.max_fee"],
			FeeAddition: sf.FeeAddition,
		},
		Price: parsed["service_fee.price"],
	}, nil
}

// openState opens the per-wallet key-value store.
func openState(dir, name string) (utxostore.KV, error) {
	if cfg.Storage.Backend == "badger" {
		return utxostore.OpenBadger(filepath.Join(dir, name+".badger"))
	}
	store := utxostore.New(filepath.Join(dir, name))
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

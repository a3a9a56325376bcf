package wallet

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/cache"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/discovery"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/history"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Defaults for Config fields left at zero.
const (
	DefaultTxPerPage = 5
	DefaultMaxInputs = 650
)

// Config contains dependencies for creating a wallet service.
type Config struct {
	Network *btc.Network
	Indexer Indexer
	// Fees may be nil, in which case no service fee is charged and fee
	// rates must be set with SetFeeRates.
	Fees  FeeSource
	State StateStore

	// AddressType selects the receive address type; zero means the
	// network default.
	AddressType btc.AddressType
	// Paths overrides derivation paths by setting key (bip44, bip49, bip84).
	Paths map[string]string

	TxPerPage int
	MaxInputs int

	Metrics Recorder
	Logger  LogWriter
}

// account is one address type's keys plus the addresses known to be used.
type account struct {
	*wallet.Account

	addresses       []string
	changeAddresses []string
}

// locate returns the branch and index of address.
func (a *account) locate(address string) (wallet.Branch, uint32, bool) {
	if i := slices.Index(a.addresses, address); i >= 0 {
		return wallet.External, uint32(i), true //nolint:gosec // address lists stay far below MaxUint32
	}
	if i := slices.Index(a.changeAddresses, address); i >= 0 {
		return wallet.Internal, uint32(i), true //nolint:gosec // address lists stay far below MaxUint32
	}
	return 0, 0, false
}

func (a *account) owns(address string) bool {
	_, _, ok := a.locate(address)
	return ok
}

type maxKey struct {
	output      btc.AddressType
	feeRate     uint64
	unconfirmed bool
}

type feeKey struct {
	address string
	amount  uint64
	feeRate uint64
}

// Service is one wallet instance. Every operation holds the service lock,
// so builds, broadcasts and commits never interleave.
type Service struct {
	net       *btc.Network
	indexer   Indexer
	fees      FeeSource
	state     StateStore
	metrics   Recorder
	logger    LogWriter
	paths     map[btc.AddressType]string
	txPerPage int
	maxInputs int

	mu          sync.Mutex
	status      State
	addressType btc.AddressType
	types       []btc.AddressType
	accounts    map[btc.AddressType]*account
	unspents    []btc.Unspent
	txIDs       map[string]struct{}
	balance     uint64
	feeRates    servicefee.FeeRates

	selection    *cache.Memo[bool, []btc.Unspent]
	maxAmount    *cache.Memo[maxKey, uint64]
	feeEstimate  *cache.Memo[feeKey, uint64]
	sortedTxIDs  *cache.Memo[struct{}, []string]
	transactions *cache.Memo[string, history.Transaction]
}

// NewService creates a new wallet service instance in the created state.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil || cfg.Network == nil || cfg.Indexer == nil || cfg.State == nil {
		return nil, walleterr.Wrap(walleterr.ErrInvalidInput, "wallet service needs a network, an indexer and a state store")
	}

	addressType := cfg.AddressType
	if addressType == btc.AddressUnknown {
		addressType = cfg.Network.DefaultAddressType()
	}
	if !cfg.Network.Supports(addressType) {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{
			"address_type": addressType.String(),
			"network":      cfg.Network.Name(),
		})
	}

	s := &Service{
		net:          cfg.Network,
		indexer:      cfg.Indexer,
		fees:         cfg.Fees,
		state:        cfg.State,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		paths:        wallet.Paths(cfg.Network, cfg.Paths),
		txPerPage:    cfg.TxPerPage,
		maxInputs:    cfg.MaxInputs,
		status:       StateCreated,
		addressType:  addressType,
		txIDs:        make(map[string]struct{}),
		selection:    cache.NewMemo[bool, []btc.Unspent](),
		maxAmount:    cache.NewMemo[maxKey, uint64](),
		feeEstimate:  cache.NewMemo[feeKey, uint64](),
		sortedTxIDs:  cache.NewMemo[struct{}, []string](),
		transactions: cache.NewMemo[string, history.Transaction](),
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.txPerPage <= 0 {
		s.txPerPage = DefaultTxPerPage
	}
	if s.maxInputs <= 0 {
		s.maxInputs = DefaultMaxInputs
	}
	return s, nil
}

// Create derives every account of the network from seed.
func (s *Service) Create(seed []byte) error {
	if len(seed) == 0 {
		return walleterr.Wrap(walleterr.ErrInvalidInput, "seed is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = StateInitializing
	derived, err := wallet.DeriveAccounts(seed, s.net, s.paths)
	if err != nil {
		s.status = StateCreated
		return err
	}
	s.setAccounts(derived)
	return s.initialize()
}

// Open builds a watch-only wallet from exported account keys. Types missing
// from pk are skipped. When a path differs from the configured one, or the
// selected address type has no key, the wallet is left in
// StateNeedInitialization and must be created from its seed again.
func (s *Service) Open(pk wallet.PublicKey) error {
	if len(pk) == 0 {
		return walleterr.Wrap(walleterr.ErrInvalidInput, "public key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = StateInitializing
	opened := make(map[btc.AddressType]*wallet.Account, len(pk))
	for _, t := range s.net.AddressTypes {
		entry, ok := pk[t]
		if !ok {
			continue
		}
		if entry.Path != s.paths[t] {
			s.logger.Debug("public key path %s for %s does not match %s", entry.Path, t, s.paths[t])
			s.status = StateNeedInitialization
			return nil
		}
		a, err := wallet.NewAccountFromXpub(entry.Xpub, s.net, t, entry.Path)
		if err != nil {
			s.status = StateCreated
			return err
		}
		opened[t] = a
	}
	if _, ok := opened[s.addressType]; !ok {
		s.status = StateNeedInitialization
		return nil
	}
	s.setAccounts(opened)
	return s.initialize()
}

func (s *Service) setAccounts(accounts map[btc.AddressType]*wallet.Account) {
	s.accounts = make(map[btc.AddressType]*account, len(accounts))
	s.types = s.types[:0]
	for _, t := range s.net.AddressTypes {
		if a, ok := accounts[t]; ok {
			s.accounts[t] = &account{Account: a}
			s.types = append(s.types, t)
		}
	}
}

// initialize restores the last known balance.
func (s *Service) initialize() error {
	balance, _, err := s.state.Balance()
	if err != nil {
		s.status = StateError
		return err
	}
	s.balance = balance
	s.status = StateInitialized
	return nil
}

// Load discovers the used addresses of every account, fetches their
// unspent outputs and persists the resulting balance. Any failure moves
// the wallet to StateError.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StateInitialized, StateLoaded, StateError:
	default:
		return walleterr.WithDetails(walleterr.ErrWalletState, map[string]string{"state": s.status.String()})
	}

	s.status = StateLoading
	if err := s.load(ctx); err != nil {
		s.status = StateError
		s.logger.Error("wallet load failed: %v", err)
		return err
	}
	s.status = StateLoaded
	return nil
}

func (s *Service) load(ctx context.Context) error {
	targets := make([]discovery.Target, 0, len(s.types))
	for _, t := range s.types {
		targets = append(targets, discovery.Target{Type: t, Deriver: s.accounts[t].Account})
	}

	scanner := discovery.NewScanner(s.indexer, &discovery.Options{Logger: s.logger, Observer: s.metrics})
	res, err := scanner.Scan(ctx, targets)
	if err != nil {
		return err
	}

	var unspents []btc.Unspent
	if len(res.UnspentAddresses) > 0 {
		unspents, err = s.indexer.Unspents(ctx, res.UnspentAddresses)
		if err != nil {
			return err
		}
	}

	for _, ar := range res.Accounts {
		acc := s.accounts[ar.Type]
		acc.addresses = ar.Addresses
		acc.changeAddresses = ar.ChangeAddresses
		s.logger.Debug("discovered %s: %d receive, %d change", ar.Type, len(ar.Addresses), len(ar.ChangeAddresses))
	}
	s.unspents = unspents
	s.txIDs = res.TxIDs
	s.balance = btc.SumValues(unspents)
	s.invalidate()
	s.transactions.Clear()
	s.metrics.SetBalance(s.balance)

	if err := s.state.SetBalance(s.balance); err != nil {
		return err
	}
	return s.state.Save()
}

// invalidate drops every memoized estimate after the UTXO set changed.
func (s *Service) invalidate() {
	s.selection.Clear()
	s.maxAmount.Clear()
	s.feeEstimate.Clear()
	s.sortedTxIDs.Clear()
}

// State returns the lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Network returns the network the wallet runs on.
func (s *Service) Network() *btc.Network {
	return s.net
}

// Balance returns the sum of tracked unspent outputs, or the persisted
// balance before the first load.
func (s *Service) Balance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Unspents returns a copy of the tracked unspent outputs.
func (s *Service) Unspents() []btc.Unspent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.unspents)
}

// AddressTypes returns the address types the wallet holds keys for.
func (s *Service) AddressTypes() []btc.AddressType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.types)
}

// AddressType returns the receive address type.
func (s *Service) AddressType() btc.AddressType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addressType
}

// SetAddressType switches the receive address type.
func (s *Service) SetAddressType(t btc.AddressType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts != nil {
		if _, ok := s.accounts[t]; !ok {
			return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"address_type": t.String()})
		}
	} else if !s.net.Supports(t) {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"address_type": t.String()})
	}
	s.addressType = t
	s.invalidate()
	return nil
}

// Address returns the next unused receive address of the selected type.
func (s *Service) Address() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextAddress(s.addressType)
}

// ChangeAddress returns the next unused change address of the selected type.
func (s *Service) ChangeAddress() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextChangeAddress(s.addressType)
}

func (s *Service) account(t btc.AddressType) (*account, error) {
	acc, ok := s.accounts[t]
	if !ok {
		return nil, walleterr.WithDetails(walleterr.ErrWalletState, map[string]string{
			"state":        s.status.String(),
			"address_type": t.String(),
		})
	}
	return acc, nil
}

// nextAddress derives the receive address after the last used one. A
// persisted derive index ahead of discovery wins, so addresses handed out
// but not yet paid to are not reused.
func (s *Service) nextAddress(t btc.AddressType) (string, error) {
	acc, err := s.account(t)
	if err != nil {
		return "", err
	}
	return acc.Address(wallet.External, s.receiveIndex(acc, t))
}

func (s *Service) receiveIndex(acc *account, t btc.AddressType) uint32 {
	idx := uint32(len(acc.addresses)) //nolint:gosec // address lists stay far below MaxUint32
	cached, ok, err := s.state.DeriveIndex(t)
	if err != nil {
		s.logger.Error("reading derive index for %s: %v", t, err)
	} else if ok && cached > idx {
		idx = cached
	}
	return idx
}

func (s *Service) nextChangeAddress(t btc.AddressType) (string, error) {
	acc, err := s.account(t)
	if err != nil {
		return "", err
	}
	return acc.Address(wallet.Internal, uint32(len(acc.changeAddresses))) //nolint:gosec // address lists stay far below MaxUint32
}

// owns reports whether address is a known receive or change address.
func (s *Service) owns(address string) bool {
	for _, acc := range s.accounts {
		if acc.owns(address) {
			return true
		}
	}
	return false
}

// PublicKey exports the account keys; Open accepts the result.
func (s *Service) PublicKey() (wallet.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts == nil {
		return nil, walleterr.WithDetails(walleterr.ErrWalletState, map[string]string{"state": s.status.String()})
	}
	accounts := make(map[btc.AddressType]*wallet.Account, len(s.accounts))
	for t, acc := range s.accounts {
		accounts[t] = acc.Account
	}
	return wallet.ExportPublicKey(accounts), nil
}

// PrivateKeys returns the key of every address that currently holds an
// unspent output, in UTXO order.
func (s *Service) PrivateKeys(seed []byte) ([]ExportedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyFor := s.keyFunc(seed)
	seen := make(map[string]struct{}, len(s.unspents))
	out := make([]ExportedKey, 0, len(s.unspents))
	for _, u := range s.unspents {
		if _, dup := seen[u.Address]; dup {
			continue
		}
		seen[u.Address] = struct{}{}
		key, err := keyFor(u)
		if err != nil {
			return nil, err
		}
		wif, err := btc.EncodeWIF(key.Private, key.Compressed, s.net)
		if err != nil {
			return nil, err
		}
		out = append(out, ExportedKey{Address: u.Address, WIF: wif})
	}
	return out, nil
}

// keyFunc resolves signing keys for wallet-owned unspents from seed. Keys
// whose address does not match the unspent mean the seed belongs to a
// different wallet.
func (s *Service) keyFunc(seed []byte) btc.KeyFunc {
	signers := make(map[btc.AddressType]*wallet.Signer)
	return func(u btc.Unspent) (*btc.Key, error) {
		acc, ok := s.accounts[u.Type]
		if !ok {
			return nil, unknownAddress(u.Address)
		}
		branch, idx, ok := acc.locate(u.Address)
		if !ok {
			return nil, unknownAddress(u.Address)
		}
		signer, ok := signers[u.Type]
		if !ok {
			var err error
			signer, err = wallet.NewSigner(seed, s.net, acc.Path)
			if err != nil {
				return nil, err
			}
			signers[u.Type] = signer
		}
		key, err := signer.Key(branch, idx)
		if err != nil {
			return nil, err
		}
		addr, err := btc.AddressFromPublicKey(key.PublicKey(), u.Type, s.net)
		if err != nil {
			return nil, err
		}
		if addr != u.Address {
			return nil, walleterr.WithSuggestion(walleterr.ErrInvalidInput, "the seed does not belong to this wallet")
		}
		return key, nil
	}
}

func unknownAddress(address string) error {
	return walleterr.WithDetails(walleterr.ErrUnknownAddress, map[string]string{"address": address})
}

// ValidateAddress checks that address decodes to a supported type.
func (s *Service) ValidateAddress(address string) error {
	return btc.ValidateAddress(address, s.net)
}

// LoadFeeRates fetches the named miner fee rates.
func (s *Service) LoadFeeRates(ctx context.Context) error {
	if s.fees == nil {
		return walleterr.Wrap(walleterr.ErrInvalidFeeRate, "no fee rate source configured")
	}
	rates, err := s.fees.FeeRates(ctx)
	if err != nil {
		return err
	}
	s.SetFeeRates(rates)
	return nil
}

// SetFeeRates replaces the named miner fee rates.
func (s *Service) SetFeeRates(rates servicefee.FeeRates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeRates = make(servicefee.FeeRates, len(rates))
	for name, v := range rates {
		s.feeRates[name] = v
	}
}

// FeeRates returns the names of the loaded fee rates in display order.
func (s *Service) FeeRates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeRates.Names()
}

func (s *Service) feeRate(name string) (uint64, error) {
	return s.feeRates.Rate(name)
}

// policy returns the current service fee policy.
func (s *Service) policy(ctx context.Context) (*servicefee.Policy, error) {
	if s.fees == nil {
		return servicefee.Disabled(), nil
	}
	p, err := s.fees.Policy(ctx, s.net.DustThreshold)
	if err != nil {
		return nil, fmt.Errorf("service fee: %w", err)
	}
	return p, nil
}

// spendable returns the memoized input candidates: confirmed outputs
// unless unconfirmed is set, largest first, capped at the input limit.
func (s *Service) spendable(unconfirmed bool) []btc.Unspent {
	list, _ := s.selection.Get(unconfirmed, func() ([]btc.Unspent, error) {
		return btc.SelectSpendable(s.unspents, s.net.MinConf, unconfirmed, s.maxInputs), nil
	})
	return list
}

func (s *Service) sortedIDs() []string {
	ids := make([]string, 0, len(s.txIDs))
	for id := range s.txIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package wallet

import (
	"regexp"
	"time"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// FormatVersion is the current wallet file format.
const FormatVersion = 1

var (
	// ErrWalletNotFound indicates the wallet does not exist.
	ErrWalletNotFound = walleterr.ErrWalletNotFound

	// ErrWalletExists indicates a wallet with that name already exists.
	ErrWalletExists = walleterr.ErrWalletExists

	// ErrInvalidWalletName indicates the wallet name is invalid.
	ErrInvalidWalletName = walleterr.WithSuggestion(walleterr.ErrInvalidInput,
		"wallet name must be 1-64 alphanumeric characters, underscores, or hyphens")

	walletNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// Wallet is the public record stored next to the encrypted seed.
type Wallet struct {
	Name        string          `json:"name"`
	CreatedAt   time.Time       `json:"created_at"`
	Chain       chain.ID        `json:"chain"`
	Regtest     bool            `json:"regtest,omitempty"`
	AddressType btc.AddressType `json:"address_type"`
	PublicKey   PublicKey       `json:"public_key"`
	Version     int             `json:"version"`
}

// NewWallet derives the accounts of seed and returns the record for them.
func NewWallet(name string, seed []byte, net *btc.Network, paths map[btc.AddressType]string) (*Wallet, error) {
	if err := ValidateWalletName(name); err != nil {
		return nil, err
	}
	accounts, err := DeriveAccounts(seed, net, paths)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Chain:       net.Chain,
		Regtest:     net.Regtest,
		AddressType: net.DefaultAddressType(),
		PublicKey:   ExportPublicKey(accounts),
		Version:     FormatVersion,
	}, nil
}

// Network returns the network the wallet was created for.
func (w *Wallet) Network() (*btc.Network, error) {
	return btc.LookupNetwork(w.Chain, w.Regtest)
}

// ValidateWalletName checks a wallet name against [a-zA-Z0-9_-]{1,64}.
func ValidateWalletName(name string) error {
	if !walletNameRegex.MatchString(name) {
		return ErrInvalidWalletName
	}
	return nil
}

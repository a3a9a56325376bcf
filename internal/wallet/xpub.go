package wallet

import (
	"sort"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// PublicKeyEntry is the exported form of one account.
type PublicKeyEntry struct {
	Xpub string `json:"xpub" yaml:"xpub"`
	Path string `json:"path" yaml:"path"`
}

// PublicKey maps address types to their account public keys. It is all a
// watch-only wallet needs.
type PublicKey map[btc.AddressType]PublicKeyEntry

// Paths resolves the derivation path for each supported type, letting
// overrides (keyed by "bip44", "bip49", "bip84") replace the defaults.
func Paths(net *btc.Network, overrides map[string]string) map[btc.AddressType]string {
	out := make(map[btc.AddressType]string, len(net.AddressTypes))
	for _, t := range net.AddressTypes {
		path := net.Paths[t]
		if p, ok := overrides[t.SettingKey()]; ok && p != "" {
			path = p
		}
		out[t] = path
	}
	return out
}

// DeriveAccounts derives one account per supported address type.
func DeriveAccounts(seed []byte, net *btc.Network, paths map[btc.AddressType]string) (map[btc.AddressType]*Account, error) {
	accounts := make(map[btc.AddressType]*Account, len(net.AddressTypes))
	for _, t := range net.AddressTypes {
		a, err := NewAccount(seed, net, t, paths[t])
		if err != nil {
			return nil, err
		}
		accounts[t] = a
	}
	return accounts, nil
}

// AccountsFromPublicKey rebuilds watch-only accounts. Every supported
// type must be present.
func AccountsFromPublicKey(pk PublicKey, net *btc.Network) (map[btc.AddressType]*Account, error) {
	accounts := make(map[btc.AddressType]*Account, len(net.AddressTypes))
	for _, t := range net.AddressTypes {
		entry, ok := pk[t]
		if !ok {
			return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{
				"public_key": "missing " + t.String(),
			})
		}
		a, err := NewAccountFromXpub(entry.Xpub, net, t, entry.Path)
		if err != nil {
			return nil, err
		}
		accounts[t] = a
	}
	return accounts, nil
}

// ExportPublicKey returns the public key of accounts.
func ExportPublicKey(accounts map[btc.AddressType]*Account) PublicKey {
	pk := make(PublicKey, len(accounts))
	for t, a := range accounts {
		pk[t] = PublicKeyEntry{Xpub: a.Xpub(), Path: a.Path}
	}
	return pk
}

// SortedTypes returns the keys of pk in a stable order.
func (pk PublicKey) SortedTypes() []btc.AddressType {
	types := make([]btc.AddressType, 0, len(pk))
	for t := range pk {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

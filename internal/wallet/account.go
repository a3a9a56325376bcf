package wallet

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Branch selects the external (receive) or internal (change) chain of an account.
type Branch uint32

// Account branches.
const (
	External Branch = 0
	Internal Branch = 1
)

// String returns "external" or "internal".
func (b Branch) String() string {
	if b == Internal {
		return "internal"
	}
	return "external"
}

// Account is the public half of one address type's key hierarchy: the
// account key at Path and its two branch keys.
type Account struct {
	Type btc.AddressType
	Path string

	net      *btc.Network
	base     *hdkeychain.ExtendedKey
	external *hdkeychain.ExtendedKey
	internal *hdkeychain.ExtendedKey
}

// NewAccount derives the account for t at path from seed and keeps only
// public key material.
func NewAccount(seed []byte, net *btc.Network, t btc.AddressType, path string) (*Account, error) {
	priv, err := deriveAccountKey(seed, net, path)
	if err != nil {
		return nil, err
	}
	pub, err := neuter(priv, net)
	if err != nil {
		return nil, err
	}
	return newAccount(pub, net, t, path)
}

// NewAccountFromXpub builds a watch-only account from its extended public key.
func NewAccountFromXpub(xpub string, net *btc.Network, t btc.AddressType, path string) (*Account, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"xpub": err.Error()})
	}
	if key.IsPrivate() {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"xpub": "private key given"})
	}
	return newAccount(key, net, t, path)
}

func newAccount(base *hdkeychain.ExtendedKey, net *btc.Network, t btc.AddressType, path string) (*Account, error) {
	external, err := base.Derive(uint32(External))
	if err != nil {
		return nil, fmt.Errorf("derive external branch: %w", err)
	}
	internal, err := base.Derive(uint32(Internal))
	if err != nil {
		return nil, fmt.Errorf("derive internal branch: %w", err)
	}
	return &Account{
		Type:     t,
		Path:     path,
		net:      net,
		base:     base,
		external: external,
		internal: internal,
	}, nil
}

// Xpub returns the serialized account public key.
func (a *Account) Xpub() string {
	return a.base.String()
}

// Address derives the address at index on branch.
func (a *Account) Address(branch Branch, index uint32) (string, error) {
	parent := a.external
	if branch == Internal {
		parent = a.internal
	}
	child, err := parent.Derive(index)
	if err != nil {
		return "", fmt.Errorf("derive %s/%d: %w", branch, index, err)
	}
	pub, err := child.ECPubKey()
	if err != nil {
		return "", err
	}
	return btc.AddressFromPublicKey(pub.SerializeCompressed(), a.Type, a.net)
}

// Addresses derives count consecutive addresses on branch starting at from.
func (a *Account) Addresses(branch Branch, from, count uint32) ([]string, error) {
	out := make([]string, 0, count)
	for i := from; i < from+count; i++ {
		addr, err := a.Address(branch, i)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Signer holds the private branch keys of one account. Callers drop it
// as soon as signing is done.
type Signer struct {
	external *hdkeychain.ExtendedKey
	internal *hdkeychain.ExtendedKey
}

// NewSigner derives the private branch keys for the account at path.
func NewSigner(seed []byte, net *btc.Network, path string) (*Signer, error) {
	base, err := deriveAccountKey(seed, net, path)
	if err != nil {
		return nil, err
	}
	external, err := base.Derive(uint32(External))
	if err != nil {
		return nil, err
	}
	internal, err := base.Derive(uint32(Internal))
	if err != nil {
		return nil, err
	}
	return &Signer{external: external, internal: internal}, nil
}

// Key returns the compressed private key at index on branch.
func (s *Signer) Key(branch Branch, index uint32) (*btc.Key, error) {
	parent := s.external
	if branch == Internal {
		parent = s.internal
	}
	child, err := parent.Derive(index)
	if err != nil {
		return nil, err
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return &btc.Key{Private: priv, Compressed: true}, nil
}

func deriveAccountKey(seed []byte, net *btc.Network, path string) (*hdkeychain.ExtendedKey, error) {
	elems, err := ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}
	key, err := hdkeychain.NewMaster(seed, net.Params)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.ErrInvalidInput, "invalid seed")
	}
	for _, elem := range elems {
		key, err = key.Derive(elem)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
	}
	return key, nil
}

// neuter converts a private extended key to its public form using the
// network's HD public version directly; fork versions are not registered
// with chaincfg.
func neuter(key *hdkeychain.ExtendedKey, net *btc.Network) (*hdkeychain.ExtendedKey, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	parentFP := make([]byte, 4)
	binary.BigEndian.PutUint32(parentFP, key.ParentFingerprint())
	return hdkeychain.NewExtendedKey(
		net.Params.HDPublicKeyID[:],
		pub.SerializeCompressed(),
		key.ChainCode(),
		parentFP,
		key.Depth(),
		key.ChildIndex(),
		false,
	), nil
}

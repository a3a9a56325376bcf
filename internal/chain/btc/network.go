// Package btc implements the Bitcoin-family transaction engine: address and
// key codecs, virtual size estimation, coin selection, replace-by-fee and
// signing. Forks are described by Network values; the code paths are shared.
package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Network holds the immutable per-chain constants.
type Network struct {
	Chain   chain.ID
	Regtest bool

	// Params carries address versions, the bech32 prefix, the WIF byte
	// and the HD key versions.
	Params *chaincfg.Params

	DustThreshold uint64
	MinConf       uint32
	BIP125        bool
	RBFFactor     decimal.Decimal
	MaxFeePerByte uint64

	// AddressTypes lists the supported types, default first.
	AddressTypes []AddressType

	// Paths holds the default account derivation path per address type.
	Paths map[AddressType]string

	TxURL string
}

// Name returns "<chain>" or "<chain>-regtest".
func (n *Network) Name() string {
	if n.Regtest {
		return string(n.Chain) + "-regtest"
	}
	return string(n.Chain)
}

// Supports reports whether the wallet derives addresses of type t on this network.
func (n *Network) Supports(t AddressType) bool {
	for _, s := range n.AddressTypes {
		if s == t {
			return true
		}
	}
	return false
}

// DefaultAddressType is the type used for receive addresses unless configured otherwise.
func (n *Network) DefaultAddressType() AddressType {
	return n.AddressTypes[0]
}

// HasBech32 reports whether the chain defines a segwit bech32 prefix.
func (n *Network) HasBech32() bool {
	return n.Params.Bech32HRPSegwit != ""
}

// ReplacementFeePerByte returns ceil(feePerByte * RBFFactor).
func (n *Network) ReplacementFeePerByte(feePerByte uint64) uint64 {
	bumped := decimal.NewFromInt(int64(feePerByte)).Mul(n.RBFFactor).Ceil() //nolint:gosec // fee rates stay far below MaxInt64
	return uint64(bumped.IntPart())                                          //nolint:gosec // non-negative by construction
}

// ReplacementPercent returns RBFFactor-1 rounded to two places, e.g. 0.5.
func (n *Network) ReplacementPercent() decimal.Decimal {
	return n.RBFFactor.Sub(decimal.NewFromInt(1)).Round(2)
}

// LookupNetwork returns the network for a chain, mainnet or regtest.
func LookupNetwork(id chain.ID, regtest bool) (*Network, error) {
	for _, n := range registry {
		if n.Chain == id && n.Regtest == regtest {
			return n, nil
		}
	}
	return nil, walleterr.WithDetails(walleterr.ErrUnsupportedNetwork, map[string]string{
		"chain":   string(id),
		"regtest": fmt.Sprint(regtest),
	})
}

// Networks returns every known network.
func Networks() []*Network {
	out := make([]*Network, len(registry))
	copy(out, registry)
	return out
}

func paths(coinType uint32, types ...AddressType) map[AddressType]string {
	out := make(map[AddressType]string, len(types))
	for _, t := range types {
		out[t] = fmt.Sprintf("m/%d'/%d'/0'", t.Purpose(), coinType)
	}
	return out
}

var rbfFactor = decimal.RequireFromString("1.5") //nolint:gochecknoglobals // shared constant

//nolint:gochecknoglobals // immutable network table
var registry = []*Network{
	{
		Chain:         chain.Bitcoin,
		Params:        &chaincfg.MainNetParams,
		DustThreshold: 546,
		MinConf:       3,
		BIP125:        true,
		RBFFactor:     rbfFactor,
		MaxFeePerByte: 1000,
		AddressTypes:  []AddressType{P2WPKH, P2SH, P2PKH},
		Paths:         paths(chain.CoinTypeBitcoin, P2WPKH, P2SH, P2PKH),
		TxURL:         "https://blockchair.com/bitcoin/transaction/%s",
	},
	{
		Chain:         chain.Bitcoin,
		Regtest:       true,
		Params:        &chaincfg.RegressionNetParams,
		DustThreshold: 546,
		MinConf:       3,
		BIP125:        true,
		RBFFactor:     rbfFactor,
		MaxFeePerByte: 1000,
		AddressTypes:  []AddressType{P2WPKH, P2SH, P2PKH},
		Paths:         paths(chain.CoinTypeTestnet, P2WPKH, P2SH, P2PKH),
		TxURL:         "https://regtest.example.invalid/tx/%s",
	},
	{
		Chain:         chain.Litecoin,
		Params:        litecoinMainNet,
		DustThreshold: 546,
		MinConf:       5,
		BIP125:        true,
		RBFFactor:     rbfFactor,
		MaxFeePerByte: 1000,
		AddressTypes:  []AddressType{P2WPKH, P2SH, P2PKH},
		Paths:         paths(chain.CoinTypeLitecoin, P2WPKH, P2SH, P2PKH),
		TxURL:         "https://blockchair.com/litecoin/transaction/%s",
	},
	{
		Chain:         chain.Litecoin,
		Regtest:       true,
		Params:        litecoinRegNet,
		DustThreshold: 546,
		MinConf:       3,
		BIP125:        true,
		RBFFactor:     rbfFactor,
		MaxFeePerByte: 1000,
		AddressTypes:  []AddressType{P2WPKH, P2SH, P2PKH},
		Paths:         paths(chain.CoinTypeTestnet, P2WPKH, P2SH, P2PKH),
		TxURL:         "https://regtest.example.invalid/tx/%s",
	},
	{
		Chain:         chain.Dogecoin,
		Params:        dogecoinMainNet,
		DustThreshold: 1_000_000,
		MinConf:       5,
		RBFFactor:     rbfFactor,
		AddressTypes:  []AddressType{P2PKH},
		Paths:         paths(chain.CoinTypeDogecoin, P2PKH),
		TxURL:         "https://blockchair.com/dogecoin/transaction/%s",
	},
	{
		Chain:         chain.Dogecoin,
		Regtest:       true,
		Params:        dogecoinRegNet,
		DustThreshold: 1_000_000,
		MinConf:       3,
		RBFFactor:     rbfFactor,
		AddressTypes:  []AddressType{P2PKH},
		Paths:         paths(chain.CoinTypeTestnet, P2PKH),
		TxURL:         "https://regtest.example.invalid/tx/%s",
	},
	{
		Chain:         chain.Dash,
		Params:        dashMainNet,
		DustThreshold: 5460,
		MinConf:       5,
		RBFFactor:     rbfFactor,
		AddressTypes:  []AddressType{P2PKH},
		Paths:         paths(chain.CoinTypeDash, P2PKH),
		TxURL:         "https://blockchair.com/dash/transaction/%s",
	},
	{
		Chain:         chain.Dash,
		Regtest:       true,
		Params:        dashRegNet,
		DustThreshold: 5460,
		MinConf:       3,
		RBFFactor:     rbfFactor,
		AddressTypes:  []AddressType{P2PKH},
		Paths:         paths(chain.CoinTypeTestnet, P2PKH),
		TxURL:         "https://regtest.example.invalid/tx/%s",
	},
}

// Fork parameters. Only the fields the address, WIF and HD codecs read are
// populated; these values are never registered with chaincfg.
//
//nolint:gochecknoglobals // immutable network parameters
var (
	litecoinMainNet = &chaincfg.Params{
		Name:             "litecoin",
		PubKeyHashAddrID: 0x30,
		ScriptHashAddrID: 0x32,
		PrivateKeyID:     0xb0,
		Bech32HRPSegwit:  "ltc",
		HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
		HDCoinType:       chain.CoinTypeLitecoin,
	}
	litecoinRegNet = &chaincfg.Params{
		Name:             "litecoin-regtest",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0x3a,
		PrivateKeyID:     0xef,
		Bech32HRPSegwit:  "rltc",
		HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		HDCoinType:       chain.CoinTypeTestnet,
	}
	dogecoinMainNet = &chaincfg.Params{
		Name:             "dogecoin",
		PubKeyHashAddrID: 0x1e,
		ScriptHashAddrID: 0x16,
		PrivateKeyID:     0x9e,
		HDPrivateKeyID:   [4]byte{0x02, 0xfa, 0xc3, 0x98},
		HDPublicKeyID:    [4]byte{0x02, 0xfa, 0xca, 0xfd},
		HDCoinType:       chain.CoinTypeDogecoin,
	}
	dogecoinRegNet = &chaincfg.Params{
		Name:             "dogecoin-regtest",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		PrivateKeyID:     0xef,
		HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		HDCoinType:       chain.CoinTypeTestnet,
	}
	dashMainNet = &chaincfg.Params{
		Name:             "dash",
		PubKeyHashAddrID: 0x4c,
		ScriptHashAddrID: 0x10,
		PrivateKeyID:     0xcc,
		HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
		HDCoinType:       chain.CoinTypeDash,
	}
	dashRegNet = &chaincfg.Params{
		Name:             "dash-regtest",
		PubKeyHashAddrID: 0x8c,
		ScriptHashAddrID: 0x13,
		PrivateKeyID:     0xef,
		HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		HDCoinType:       chain.CoinTypeTestnet,
	}
)

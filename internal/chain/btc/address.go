package btc

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/txscript"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// AddressType is the closed set of output script kinds the wallet understands.
type AddressType uint8

// Address types. AddressUnknown covers anything decodable but unsupported,
// e.g. taproot, as well as undecodable input.
const (
	AddressUnknown AddressType = iota
	P2PKH
	P2SH // P2SH-wrapped P2WPKH when derived by the wallet
	P2WPKH
	P2WSH
)

// String returns the lowercase name used in settings and public keys.
func (t AddressType) String() string {
	switch t {
	case P2PKH:
		return "p2pkh"
	case P2SH:
		return "p2sh"
	case P2WPKH:
		return "p2wpkh"
	case P2WSH:
		return "p2wsh"
	default:
		return "unknown"
	}
}

// Purpose returns the BIP43 purpose of the derivation scheme for t.
func (t AddressType) Purpose() uint32 {
	switch t {
	case P2PKH:
		return 44
	case P2SH:
		return 49
	case P2WPKH:
		return 84
	default:
		return 0
	}
}

// SettingKey returns the settings key holding the derivation path, e.g. "bip84".
func (t AddressType) SettingKey() string {
	if p := t.Purpose(); p != 0 {
		return fmt.Sprintf("bip%d", p)
	}
	return ""
}

// ParseAddressType parses the String form of an address type.
func ParseAddressType(s string) (AddressType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p2pkh":
		return P2PKH, nil
	case "p2sh":
		return P2SH, nil
	case "p2wpkh":
		return P2WPKH, nil
	case "p2wsh":
		return P2WSH, nil
	default:
		return AddressUnknown, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"address_type": s})
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t AddressType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AddressType) UnmarshalText(b []byte) error {
	if string(b) == "unknown" {
		*t = AddressUnknown
		return nil
	}
	parsed, err := ParseAddressType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Decoded is the result of decoding an address string.
type Decoded struct {
	Type   AddressType
	Script []byte
}

// AddressFromPublicKey encodes the wallet address of type t for pubKey.
// Segwit types require a compressed key.
func AddressFromPublicKey(pubKey []byte, t AddressType, net *Network) (string, error) {
	hash := Hash160(pubKey)
	switch t {
	case P2PKH:
		addr, err := btcutil.NewAddressPubKeyHash(hash, net.Params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case P2SH:
		if len(pubKey) != 33 {
			return "", walleterr.Wrap(walleterr.ErrInvalidPrivateKey, "p2sh-p2wpkh needs a compressed key")
		}
		addr, err := btcutil.NewAddressScriptHash(witnessProgram(hash), net.Params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case P2WPKH:
		if len(pubKey) != 33 {
			return "", walleterr.Wrap(walleterr.ErrInvalidPrivateKey, "p2wpkh needs a compressed key")
		}
		addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, net.Params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	default:
		return "", walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"address_type": t.String()})
	}
}

// RedeemScript returns the P2WPKH program nested inside a P2SH address.
func RedeemScript(compressedPubKey []byte) []byte {
	return witnessProgram(Hash160(compressedPubKey))
}

// witnessProgram builds OP_0 <20-byte hash>.
func witnessProgram(hash []byte) []byte {
	script, _ := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash).Script()
	return script
}

// DecodeAddress decodes addr into its type and output script. Bech32 is
// tried first when the chain has a segwit prefix and addr carries it; a
// failed bech32 decode falls through to base58check.
func DecodeAddress(addr string, net *Network) (*Decoded, error) {
	if net.HasBech32() && strings.HasPrefix(strings.ToLower(addr), net.Params.Bech32HRPSegwit+"1") {
		if d, err := decodeSegwit(addr, net); err == nil {
			return d, nil
		}
	}
	d, err := decodeBase58(addr, net)
	if err != nil {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{
			"address": addr,
			"reason":  err.Error(),
		})
	}
	return d, nil
}

// TypeOf returns the address type of addr, or AddressUnknown if it does not decode.
func TypeOf(addr string, net *Network) AddressType {
	d, err := DecodeAddress(addr, net)
	if err != nil {
		return AddressUnknown
	}
	return d.Type
}

// ValidateAddress accepts only addresses the wallet can pay to.
func ValidateAddress(addr string, net *Network) error {
	d, err := DecodeAddress(addr, net)
	if err != nil {
		return err
	}
	if d.Type == AddressUnknown {
		return walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"address": addr})
	}
	return nil
}

func decodeSegwit(addr string, net *Network) (*Decoded, error) {
	hrp, data, encoding, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, err
	}
	if hrp != net.Params.Bech32HRPSegwit {
		return nil, fmt.Errorf("unexpected prefix %q", hrp)
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("empty witness data")
	}

	version := data[0]
	if version > 16 {
		return nil, fmt.Errorf("invalid witness version %d", version)
	}
	if version == 0 && encoding != bech32.Version0 {
		return nil, fmt.Errorf("witness v0 must use bech32")
	}
	if version != 0 && encoding != bech32.VersionM {
		return nil, fmt.Errorf("witness v%d must use bech32m", version)
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(program) < 2 || len(program) > 40 {
		return nil, fmt.Errorf("invalid witness program length %d", len(program))
	}

	if version == 0 {
		switch len(program) {
		case 20:
			a, err := btcutil.NewAddressWitnessPubKeyHash(program, net.Params)
			if err != nil {
				return nil, err
			}
			return scriptFor(P2WPKH, a)
		case 32:
			a, err := btcutil.NewAddressWitnessScriptHash(program, net.Params)
			if err != nil {
				return nil, err
			}
			return scriptFor(P2WSH, a)
		default:
			return nil, fmt.Errorf("invalid v0 program length %d", len(program))
		}
	}

	// Future versions (taproot included) decode but are not spendable targets.
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1 + version - 1).
		AddData(program).
		Script()
	if err != nil {
		return nil, err
	}
	return &Decoded{Type: AddressUnknown, Script: script}, nil
}

func decodeBase58(addr string, net *Network) (*Decoded, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, err
	}
	if len(payload) != 20 {
		return nil, fmt.Errorf("invalid payload length %d", len(payload))
	}
	switch version {
	case net.Params.PubKeyHashAddrID:
		a, err := btcutil.NewAddressPubKeyHash(payload, net.Params)
		if err != nil {
			return nil, err
		}
		return scriptFor(P2PKH, a)
	case net.Params.ScriptHashAddrID:
		a, err := btcutil.NewAddressScriptHashFromHash(payload, net.Params)
		if err != nil {
			return nil, err
		}
		return scriptFor(P2SH, a)
	default:
		return nil, fmt.Errorf("unknown version byte 0x%02x", version)
	}
}

func scriptFor(t AddressType, a btcutil.Address) (*Decoded, error) {
	script, err := txscript.PayToAddrScript(a)
	if err != nil {
		return nil, err
	}
	return &Decoded{Type: t, Script: script}, nil
}

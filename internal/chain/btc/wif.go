package btc

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Key is a decoded private key together with its public key encoding.
type Key struct {
	Private    *btcec.PrivateKey
	Compressed bool
}

// PublicKey returns the serialized public key in the encoding the key was imported with.
func (k *Key) PublicKey() []byte {
	if k.Compressed {
		return k.Private.PubKey().SerializeCompressed()
	}
	return k.Private.PubKey().SerializeUncompressed()
}

// DecodeWIF decodes a wallet import format string for net. A 32-byte
// payload is an uncompressed key; 33 bytes ending in 0x01 is compressed.
func DecodeWIF(text string, net *Network) (*Key, error) {
	payload, version, err := base58.CheckDecode(text)
	if err != nil {
		return nil, invalidKey("checksum")
	}
	if version != net.Params.PrivateKeyID {
		return nil, invalidKey("network")
	}

	var compressed bool
	switch {
	case len(payload) == btcec.PrivKeyBytesLen:
	case len(payload) == btcec.PrivKeyBytesLen+1 && payload[btcec.PrivKeyBytesLen] == 0x01:
		compressed = true
		payload = payload[:btcec.PrivKeyBytesLen]
	default:
		return nil, invalidKey("format")
	}

	priv, _ := btcec.PrivKeyFromBytes(payload)
	if priv.Key.IsZero() {
		return nil, invalidKey("range")
	}
	return &Key{Private: priv, Compressed: compressed}, nil
}

// EncodeWIF encodes priv for net. Wallet-derived keys are always compressed.
func EncodeWIF(priv *btcec.PrivateKey, compressed bool, net *Network) (string, error) {
	wif, err := btcutil.NewWIF(priv, net.Params, compressed)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

func invalidKey(reason string) error {
	return walleterr.WithDetails(walleterr.ErrInvalidPrivateKey, map[string]string{"reason": reason})
}

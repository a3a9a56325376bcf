package btc

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// KeyFunc resolves the signing key for a selected input.
type KeyFunc func(u Unspent) (*Key, error)

// Sign signs every selected input and verifies the result with the script
// engine. P2SH inputs are signed as P2SH-wrapped P2WPKH.
func (b *TxBuilder) Sign(keyFor KeyFunc) error {
	if b.vsizeOnly {
		return walleterr.Wrap(walleterr.ErrWalletState, "builder only estimated sizes")
	}

	fetcher := b.prevOutFetcher()
	sigHashes := txscript.NewTxSigHashes(b.tx, fetcher)

	for i, u := range b.inputs {
		key, err := keyFor(u)
		if err != nil {
			return fmt.Errorf("key for %s: %w", u.Outpoint(), err)
		}
		if err := b.signInput(i, u, key, sigHashes); err != nil {
			return fmt.Errorf("sign input %d: %w", i, err)
		}
	}

	for i, u := range b.inputs {
		vm, err := txscript.NewEngine(b.prevScripts[i], b.tx, i, txscript.StandardVerifyFlags,
			nil, sigHashes, int64(u.Value), fetcher) //nolint:gosec // bounded by the coin supply
		if err != nil {
			return fmt.Errorf("verify input %d: %w", i, err)
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("verify input %d: %w", i, err)
		}
	}
	return nil
}

func (b *TxBuilder) signInput(i int, u Unspent, key *Key, sigHashes *txscript.TxSigHashes) error {
	amount := int64(u.Value) //nolint:gosec // bounded by the coin supply
	in := b.tx.TxIn[i]

	switch u.Type {
	case P2WPKH:
		if !key.Compressed {
			return walleterr.Wrap(walleterr.ErrInvalidPrivateKey, "segwit input needs a compressed key")
		}
		witness, err := txscript.WitnessSignature(b.tx, sigHashes, i, amount, b.prevScripts[i],
			txscript.SigHashAll, key.Private, true)
		if err != nil {
			return err
		}
		in.Witness = witness

	case P2SH:
		if !key.Compressed {
			return walleterr.Wrap(walleterr.ErrInvalidPrivateKey, "segwit input needs a compressed key")
		}
		redeem := RedeemScript(key.PublicKey())
		witness, err := txscript.WitnessSignature(b.tx, sigHashes, i, amount, redeem,
			txscript.SigHashAll, key.Private, true)
		if err != nil {
			return err
		}
		sigScript, err := txscript.NewScriptBuilder().AddData(redeem).Script()
		if err != nil {
			return err
		}
		in.Witness = witness
		in.SignatureScript = sigScript

	case P2PKH:
		if key.Compressed {
			sigScript, err := txscript.SignatureScript(b.tx, i, b.prevScripts[i], txscript.SigHashAll, key.Private, true)
			if err != nil {
				return err
			}
			in.SignatureScript = sigScript
			return nil
		}
		sigScript, err := LegacySignatureScript(b.tx, i, b.prevScripts[i], key)
		if err != nil {
			return err
		}
		in.SignatureScript = sigScript

	default:
		return walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{
			"address": u.Address,
			"reason":  "cannot spend " + u.Type.String(),
		})
	}
	return nil
}

// LegacySignatureScript signs input idx over the legacy sighash preimage
// and places the signature next to the key's own public key encoding.
// Used for uncompressed keys, whose public key the standard path would
// serialize compressed.
func LegacySignatureScript(tx *wire.MsgTx, idx int, prevScript []byte, key *Key) ([]byte, error) {
	sig, err := txscript.RawTxInSignature(tx, idx, prevScript, txscript.SigHashAll, key.Private)
	if err != nil {
		return nil, err
	}
	return txscript.NewScriptBuilder().AddData(sig).AddData(key.PublicKey()).Script()
}

func (b *TxBuilder) prevOutFetcher() *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, u := range b.inputs {
		fetcher.AddPrevOut(b.tx.TxIn[i].PreviousOutPoint,
			wire.NewTxOut(int64(u.Value), b.prevScripts[i])) //nolint:gosec // bounded by the coin supply
	}
	return fetcher
}

// Hex returns the serialized transaction.
func (b *TxBuilder) Hex() (string, error) {
	var buf bytes.Buffer
	buf.Grow(b.tx.SerializeSize())
	if err := b.tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// TxID returns the transaction id.
func (b *TxBuilder) TxID() string {
	return b.tx.TxHash().String()
}

// PSBT exports the unsigned transaction with the spent outputs attached,
// base64 encoded, for signing elsewhere.
func (b *TxBuilder) PSBT() (string, error) {
	if b.vsizeOnly {
		return "", walleterr.Wrap(walleterr.ErrWalletState, "builder only estimated sizes")
	}

	unsigned := b.tx.Copy()
	for _, in := range unsigned.TxIn {
		in.SignatureScript = nil
		in.Witness = nil
	}
	packet, err := psbt.NewFromUnsignedTx(unsigned)
	if err != nil {
		return "", err
	}
	for i, u := range b.inputs {
		packet.Inputs[i].WitnessUtxo = wire.NewTxOut(int64(u.Value), b.prevScripts[i]) //nolint:gosec // bounded by the coin supply
	}
	return packet.B64Encode()
}

package btc

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

func keyFunc(t *testing.T, wif string) KeyFunc {
	t.Helper()
	key, err := DecodeWIF(wif, regtest(t))
	require.NoError(t, err)
	return func(Unspent) (*Key, error) { return key, nil }
}

func TestSignMixedInputs(t *testing.T) {
	t.Parallel()

	net := regtest(t)
	unspents := []Unspent{
		unspent(keyOneP2WPKH, P2WPKH, 100_000_000, "a"),
		unspent(keyOneP2SH, P2SH, 100_000_000, "b"),
		unspent(keyOneP2PKH, P2PKH, 100_000_000, "c"),
	}
	b := NewTxBuilder(BuilderOptions{Network: net, Unspents: unspents})
	_, err := b.Build(BuildRequest{
		Address:       destP2WPKH,
		Value:         250_000_000,
		FeeRate:       1,
		ChangeAddress: changeP2WPKH,
	})
	require.NoError(t, err)
	require.NoError(t, b.Sign(keyFunc(t, keyOneWIF)))

	in := b.tx.TxIn
	require.Len(t, in, 3)
	assert.Len(t, in[0].Witness, 2)
	assert.Empty(t, in[0].SignatureScript)
	assert.Len(t, in[1].Witness, 2)
	assert.Len(t, in[1].SignatureScript, 23)
	assert.Empty(t, in[2].Witness)
	assert.NotEmpty(t, in[2].SignatureScript)

	raw, err := b.Hex()
	require.NoError(t, err)
	_, err = hex.DecodeString(raw)
	require.NoError(t, err)

	assert.Len(t, b.TxID(), 64)
	assert.LessOrEqual(t, uint64(b.tx.SerializeSizeStripped()), b.Vsize())
}

func TestSignUncompressed(t *testing.T) {
	t.Parallel()

	net := regtest(t)
	unspents := []Unspent{unspent(keyOneP2PKHUncomp, P2PKH, 100_000_000, "d")}
	b := NewTxBuilder(BuilderOptions{Network: net, Unspents: unspents, Uncompressed: true})

	fee, err := b.Build(BuildRequest{Address: destP2WPKH, Value: 99_000_000, FeeRate: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), fee)
	assert.Equal(t, uint64(10+180+31), b.Vsize())

	require.NoError(t, b.Sign(keyFunc(t, keyOneUncompressedWIF)))

	// <sig> <65-byte key>
	script := b.tx.TxIn[0].SignatureScript
	require.NotEmpty(t, script)
	assert.Equal(t, byte(65), script[len(script)-66])
	assert.Equal(t, byte(0x04), script[len(script)-65])
}

func TestSignWrongKeyFails(t *testing.T) {
	t.Parallel()

	net := regtest(t)
	unspents := []Unspent{unspent(keyOneP2PKH, P2PKH, 100_000, "a")}
	b := NewTxBuilder(BuilderOptions{Network: net, Unspents: unspents})
	_, err := b.Build(BuildRequest{Address: destP2WPKH, Value: 50_000, FeeRate: 1})
	require.NoError(t, err)

	// The uncompressed encoding hashes to a different address.
	require.Error(t, b.Sign(keyFunc(t, keyOneUncompressedWIF)))
}

func TestSignSegwitNeedsCompressedKey(t *testing.T) {
	t.Parallel()

	net := regtest(t)
	unspents := []Unspent{unspent(keyOneP2WPKH, P2WPKH, 100_000, "a")}
	b := NewTxBuilder(BuilderOptions{Network: net, Unspents: unspents})
	_, err := b.Build(BuildRequest{Address: destP2WPKH, Value: 50_000, FeeRate: 1})
	require.NoError(t, err)

	err = b.Sign(keyFunc(t, keyOneUncompressedWIF))
	require.ErrorIs(t, err, walleterr.ErrInvalidPrivateKey)
}

func TestSignKeyLookupError(t *testing.T) {
	t.Parallel()

	net := regtest(t)
	b := NewTxBuilder(BuilderOptions{Network: net, Unspents: mixedUnspents()})
	_, err := b.Build(BuildRequest{Address: destP2WPKH, Value: 10_000, FeeRate: 1})
	require.NoError(t, err)

	lookup := errors.New("no key")
	err = b.Sign(func(Unspent) (*Key, error) { return nil, lookup })
	require.ErrorIs(t, err, lookup)
}

func TestSignVsizeOnly(t *testing.T) {
	t.Parallel()

	b := NewTxBuilder(BuilderOptions{Network: regtest(t), VsizeOnly: true})
	require.ErrorIs(t, b.Sign(keyFunc(t, keyOneWIF)), walleterr.ErrWalletState)

	_, err := b.PSBT()
	require.ErrorIs(t, err, walleterr.ErrWalletState)
}

func TestPSBT(t *testing.T) {
	t.Parallel()

	net := regtest(t)
	b := NewTxBuilder(BuilderOptions{Network: net, Unspents: mixedUnspents()})
	_, err := b.Build(BuildRequest{Address: destP2WPKH, Value: 60_000, FeeRate: 1, ChangeAddress: changeP2WPKH})
	require.NoError(t, err)

	packet, err := b.PSBT()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(packet, "cHNidP8"))

	// Exporting after signing still yields an unsigned packet.
	require.NoError(t, b.Sign(keyFunc(t, keyOneWIF)))
	signedPacket, err := b.PSBT()
	require.NoError(t, err)
	assert.Equal(t, packet, signedPacket)
}

package btc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
)

// Addresses of private key 1 on regtest.
const (
	keyOneWIF             = "cMahea7zqjxrtgAbB7LSGbcQUr1uX1ojuat9jZodMN87JcbXMTcA"
	keyOneUncompressedWIF = "91avARGdfge8E4tZfYLoxeJ5sGBdNJQH4kvjJoQFacbgwmaKkrx"
	keyOneP2WPKH          = "bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080"
	keyOneP2SH            = "2NAUYAHhujozruyzpsFRP63mbrdaU5wnEpN"
	keyOneP2PKH           = "mrCDrCybB6J1vRfbwM5hemdJz73FwDBC8r"
	keyOneP2PKHUncomp     = "mtoKs9V381UAhUia3d7Vb9GNak8Qvmcsme"
	keyOnePubHex          = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

	destP2WPKH   = "bcrt1qq76v3m62vxdllc2jry7n4n2vc5pjz2mx2f5zup"
	changeP2WPKH = "bcrt1q4qqztfxyyqhc6scx005h4j62xa2skrqta3g3rh"
	destP2PKH    = "mtHcCKvxPXL6XLXQsvbZ9Cv7ShdAWz7eid"
	destP2WSH    = "bcrt1qhxtthndg70cthfasy8y4qlk9h7r3006azn9md0fad5dg9hh76nkq8d46nh"
	csFeeAddress = "bcrt1qfrl9p7sp00xe8w2nk0krrjpxgventn24msjs7n"
)

func regtest(t *testing.T) *Network {
	t.Helper()
	net, err := LookupNetwork(chain.Bitcoin, true)
	require.NoError(t, err)
	return net
}

func txid(c string) string {
	return strings.Repeat(c, 64)
}

func unspent(address string, typ AddressType, value uint64, id string) Unspent {
	return Unspent{
		Address:       address,
		Type:          typ,
		Confirmations: 6,
		TxID:          txid(id),
		Value:         value,
	}
}

type fixedServiceFee struct {
	address string
	fee     uint64
}

func (f fixedServiceFee) Enabled() bool           { return true }
func (f fixedServiceFee) Address() string         { return f.address }
func (f fixedServiceFee) Compute(_ uint64) uint64 { return f.fee }

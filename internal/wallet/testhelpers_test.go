package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
)

const testSeedHex = "2b48a48a752f6c49772bf97205660411cd2163fe6ce2de19537e9c94d3648c85" +
	"c0d7f405660c20253115aaf1799b1c41cdd62b4cfbb6845bc9475495fc64b874"

func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)
	return seed
}

func regtest(t *testing.T) *btc.Network {
	t.Helper()
	net, err := btc.LookupNetwork(chain.Bitcoin, true)
	require.NoError(t, err)
	return net
}

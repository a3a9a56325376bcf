package cli

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/history"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/version"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Private key 1 on regtest and its native segwit address.
const (
	importWIF    = "cMahea7zqjxrtgAbB7LSGbcQUr1uX1ojuat9jZodMN87JcbXMTcA"
	importP2WPKH = "bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080"
)

// fundedWallet saves the test wallet and funds its first receive address
// with one confirmed coin.
func fundedWallet(t *testing.T) (*bytes.Buffer, *fakeNode) {
	t.Helper()
	buf := setupCLI(t)
	node := newFakeNode(t)
	saveTestWallet(t, "main")
	node.fund(p2wpkh0, btcSats, 300)
	return buf, node
}

// withPayment sets the payment flags for one test.
func withPayment(t *testing.T, to, amount string) {
	t.Helper()
	prevTo, prevAmount, prevUnconfirmed := payTo, payAmount, payUnconfirmed
	t.Cleanup(func() { payTo, payAmount, payUnconfirmed = prevTo, prevAmount, prevUnconfirmed })
	payTo, payAmount, payUnconfirmed = to, amount, false
}

func TestRunBalance(t *testing.T) {
	buf, node := fundedWallet(t)
	node.fund(p2wpkh1, 50_000, 1)

	require.NoError(t, runBalance(balanceCmd, nil))

	var view balanceView
	decodeOutput(t, buf, &view)
	assert.Equal(t, "main", view.Wallet)
	assert.Equal(t, "BTC", view.Symbol)
	assert.Equal(t, "1.0005", view.Balance)
	assert.Equal(t, uint64(btcSats+50_000), view.BalanceSat)
	assert.Equal(t, uint64(50_000), view.Pending)
	require.Len(t, view.ByType, 1)
	assert.Equal(t, btc.P2WPKH, view.ByType[0].Type)
	assert.Equal(t, 2, view.ByType[0].Outputs)
}

func TestRunReceive(t *testing.T) {
	prevType, prevAmount, prevQR := receiveType, receiveAmount, receiveQR
	t.Cleanup(func() { receiveType, receiveAmount, receiveQR = prevType, prevAmount, prevQR })

	t.Run("next unused", func(t *testing.T) {
		buf, _ := fundedWallet(t)
		receiveType, receiveAmount, receiveQR = "", "0.25", false

		require.NoError(t, runReceive(receiveCmd, nil))
		var view receiveView
		decodeOutput(t, buf, &view)
		assert.Equal(t, p2wpkh1, view.Address)
		assert.Equal(t, btc.P2WPKH, view.Type)
		assert.Equal(t, "bitcoin:"+p2wpkh1+"?amount=0.25", view.URI)
	})

	t.Run("other type", func(t *testing.T) {
		buf, _ := fundedWallet(t)
		receiveType, receiveAmount, receiveQR = "p2pkh", "", false

		require.NoError(t, runReceive(receiveCmd, nil))
		var view receiveView
		decodeOutput(t, buf, &view)
		assert.Equal(t, btc.P2PKH, view.Type)
		assert.Equal(t, "mpRkCswzPqyiamEPbBkEen1zWjUFEh5Hrs", view.Address)
	})

	t.Run("bad amount", func(t *testing.T) {
		fundedWallet(t)
		receiveType, receiveAmount, receiveQR = "", "abc", false
		require.Error(t, runReceive(receiveCmd, nil))
	})
}

func TestRunFeeAndMax(t *testing.T) {
	buf, _ := fundedWallet(t)
	withPayment(t, destP2WPKH, "0.1")

	require.NoError(t, runFee(feeCmd, nil))
	var fee paymentView
	decodeOutput(t, buf, &fee)
	assert.Equal(t, "0.1", fee.Amount)
	assert.Equal(t, "default", fee.FeeRate)
	assert.NotEqual(t, "0", fee.Fee)
	assert.Empty(t, fee.TxID)

	buf.Reset()
	require.NoError(t, runMax(maxCmd, nil))
	var maxAmount maxView
	decodeOutput(t, buf, &maxAmount)
	assert.Less(t, maxAmount.AmountSat, uint64(btcSats))
	assert.Greater(t, maxAmount.AmountSat, uint64(btcSats-10_000))
}

func TestRunSend(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		buf, node := fundedWallet(t)
		withMockPrompts(t, testPassword, true)
		withPayment(t, destP2WPKH, "0.1")

		require.NoError(t, runSend(sendCmd, nil))

		var view paymentView
		decodeOutput(t, buf, &view)
		assert.Len(t, view.TxID, 64)
		assert.Equal(t, "https://regtest.example.invalid/tx/"+view.TxID, view.URL)
		assert.Equal(t, 1, node.broadcastCount())
	})

	t.Run("declined", func(t *testing.T) {
		_, node := fundedWallet(t)
		withMockPrompts(t, testPassword, false)
		withPayment(t, destP2WPKH, "0.1")

		err := runSend(sendCmd, nil)
		require.ErrorIs(t, err, walleterr.ErrInvalidInput)
		assert.Zero(t, node.broadcastCount())
	})

	t.Run("too much", func(t *testing.T) {
		_, node := fundedWallet(t)
		withMockPrompts(t, testPassword, true)
		withPayment(t, destP2WPKH, "2")

		err := runSend(sendCmd, nil)
		require.ErrorIs(t, err, walleterr.ErrBigAmount)
		assert.Zero(t, node.broadcastCount())
	})

	t.Run("bad address", func(t *testing.T) {
		fundedWallet(t)
		withMockPrompts(t, testPassword, true)
		withPayment(t, "not-an-address", "0.1")
		require.Error(t, runSend(sendCmd, nil))
	})
}

func TestRunPSBT(t *testing.T) {
	buf, node := fundedWallet(t)
	withPayment(t, destP2WPKH, "max")

	require.NoError(t, runPSBT(psbtCmd, nil))

	var view paymentView
	decodeOutput(t, buf, &view)
	raw, err := base64.StdEncoding.DecodeString(view.PSBT)
	require.NoError(t, err)
	assert.Equal(t, []byte("psbt\xff"), raw[:5])
	assert.Zero(t, node.broadcastCount())
}

func TestRunImport(t *testing.T) {
	prevRate, prevYes := importFeeRate, importYes
	t.Cleanup(func() { importFeeRate, importYes = prevRate, prevYes })
	importFeeRate = ""

	t.Run("sweeps", func(t *testing.T) {
		buf, node := fundedWallet(t)
		withMockPrompts(t, importWIF, true)
		node.fund(importP2WPKH, btcSats/2, 300)
		importYes = true

		require.NoError(t, runImport(importCmd, nil))
		var view importView
		decodeOutput(t, buf, &view)
		assert.Equal(t, "0.5", view.Value)
		assert.Len(t, view.TxID, 64)
		assert.Equal(t, 1, node.broadcastCount())
	})

	t.Run("nothing to sweep", func(t *testing.T) {
		_, node := fundedWallet(t)
		withMockPrompts(t, importWIF, true)
		importYes = true

		err := runImport(importCmd, nil)
		require.ErrorIs(t, err, walleterr.ErrSmallAmount)
		assert.Zero(t, node.broadcastCount())
	})

	t.Run("declined", func(t *testing.T) {
		_, node := fundedWallet(t)
		withMockPrompts(t, importWIF, false)
		node.fund(importP2WPKH, btcSats/2, 300)
		importYes = false

		err := runImport(importCmd, nil)
		require.ErrorIs(t, err, walleterr.ErrInvalidInput)
		assert.Zero(t, node.broadcastCount())
	})
}

func TestRunKeys(t *testing.T) {
	buf, _ := fundedWallet(t)
	withMockPrompts(t, testPassword, true)

	require.NoError(t, runKeys(keysCmd, nil))
	var view keysView
	decodeOutput(t, buf, &view)
	require.Len(t, view.Keys, 1)
	assert.Equal(t, p2wpkh0, view.Keys[0].Address)
	assert.NotEmpty(t, view.Keys[0].WIF)
}

func TestRunKeysWrongPassword(t *testing.T) {
	fundedWallet(t)
	withMockPrompts(t, "wrong password", true)
	require.Error(t, runKeys(keysCmd, nil))
}

func TestRunVersion(t *testing.T) {
	prevCheck, prevURL := versionCheck, releasesURL
	t.Cleanup(func() { versionCheck, releasesURL = prevCheck, prevURL })

	t.Run("local", func(t *testing.T) {
		buf := setupCLI(t)
		versionCheck = false
		require.NoError(t, runVersion(versionCmd, nil))

		var info version.Info
		decodeOutput(t, buf, &info)
		assert.Equal(t, version.Version, info.Version)
		assert.Empty(t, info.Latest)
	})

	t.Run("check", func(t *testing.T) {
		buf := setupCLI(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"tag_name":"v9.9.9"}`))
		}))
		t.Cleanup(srv.Close)
		releasesURL = srv.URL
		versionCheck = true

		require.NoError(t, runVersion(versionCmd, nil))
		var info version.Info
		decodeOutput(t, buf, &info)
		assert.Equal(t, "v9.9.9", info.Latest)
		assert.True(t, info.Newer)
	})
}

func TestViewsRenderText(t *testing.T) {
	t.Parallel()

	t.Run("balance", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		v := balanceView{
			Symbol:  "BTC",
			Balance: "1.5",
			Pending: 50_000,
			MinConf: 3,
			ByType:  []typeBalance{{Type: btc.P2WPKH, Balance: "1.5", Outputs: 2}},
		}
		require.NoError(t, v.RenderText(&buf))
		assert.Equal(t, "Balance: 1.5 BTC\n"+
			"Pending: 0.0005 BTC (under 3 confirmations)\n"+
			"\n"+
			"TYPE    OUTPUTS  BALANCE\n"+
			"------  -------  -------\n"+
			"p2wpkh        2      1.5\n", buf.String())
	})

	t.Run("payment", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		v := paymentView{TxID: "abc", To: destP2WPKH, Amount: "0.1", Fee: "0.00000282", FeeRate: "default", symbol: "BTC"}
		require.NoError(t, v.RenderText(&buf))
		assert.Contains(t, buf.String(), "Sent 0.1 BTC to "+destP2WPKH)
		assert.Contains(t, buf.String(), "TxID: abc")
		assert.NotContains(t, buf.String(), "URL:")
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		v := historyView{
			Transactions: []history.Transaction{
				{ID: "in", Incoming: true, Amount: 150_000_000, Confirmations: 0},
				{ID: "out", Amount: 10_000_000, Fee: 282, Confirmations: 7, RBF: true, Timestamp: time.Unix(1_700_000_000, 0)},
			},
			HasMore: true,
			Cursor:  "out",
		}
		require.NoError(t, v.RenderText(&buf))
		text := buf.String()
		assert.Contains(t, text, "pending")
		assert.Contains(t, text, "1.5")
		assert.Contains(t, text, "-0.1")
		assert.Contains(t, text, "yes")
		assert.Contains(t, text, "cswallet history --cursor out")
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, historyView{}.RenderText(&buf))
		assert.Equal(t, "No transactions.\n", buf.String())
	})
}

func TestFormatterTextOutput(t *testing.T) {
	setupCLI(t)
	var buf bytes.Buffer
	formatter = output.NewFormatter(output.FormatText, &buf)

	require.NoError(t, formatter.Print(receiveView{Address: p2wpkh1, Type: btc.P2WPKH}))
	assert.Equal(t, p2wpkh1+" (p2wpkh)\n", buf.String())
}

package output

import (
	"io"
	"net/url"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
)

// QRConfig configures terminal QR rendering.
type QRConfig struct {
	Level      qr.Level
	QuietZone  int
	HalfBlocks bool
}

// DefaultQRConfig uses low error correction and half-height blocks,
// which keeps an address code within a normal terminal.
func DefaultQRConfig() QRConfig {
	return QRConfig{Level: qr.L, QuietZone: 1, HalfBlocks: true}
}

// PaymentURI builds a BIP21 style URI such as "bitcoin:<address>". A zero
// amount is omitted.
func PaymentURI(scheme, address string, amount uint64) string {
	u := url.URL{Scheme: scheme, Opaque: address}
	if amount > 0 {
		u.RawQuery = "amount=" + chain.FormatAmount(amount)
	}
	return u.String()
}

// CanRenderQR reports whether w is a terminal.
func CanRenderQR(w io.Writer) bool {
	return isTerminal(w)
}

// RenderQR draws data as a QR code when w is a terminal and writes
// nothing otherwise.
func RenderQR(w io.Writer, data string, cfg QRConfig) error {
	if !CanRenderQR(w) {
		return nil
	}
	qrterminal.GenerateWithConfig(data, qrterminal.Config{
		Level:          cfg.Level,
		Writer:         w,
		QuietZone:      cfg.QuietZone,
		HalfBlocks:     cfg.HalfBlocks,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}

package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// ErrInvalidPath indicates a malformed derivation path.
var ErrInvalidPath = walleterr.WithSuggestion(walleterr.ErrInvalidInput, "derivation paths look like m/84'/0'/0'")

// DerivationPath is a parsed BIP32 path; hardened elements carry the
// hardened offset.
type DerivationPath []uint32

// ParseDerivationPath parses "m/84'/0'/0'". Both ' and h mark hardened elements.
func ParseDerivationPath(s string) (DerivationPath, error) {
	elems := strings.Split(strings.TrimSpace(s), "/")
	if len(elems) < 2 || strings.TrimSpace(elems[0]) != "m" {
		return nil, walleterr.WithDetails(ErrInvalidPath, map[string]string{"path": s})
	}

	path := make(DerivationPath, 0, len(elems)-1)
	for _, elem := range elems[1:] {
		elem = strings.TrimSpace(elem)
		var offset uint32
		if strings.HasSuffix(elem, "'") || strings.HasSuffix(elem, "h") {
			offset = hdkeychain.HardenedKeyStart
			elem = elem[:len(elem)-1]
		}
		n, err := strconv.ParseUint(elem, 10, 32)
		if err != nil || uint32(n) >= hdkeychain.HardenedKeyStart {
			return nil, walleterr.WithDetails(ErrInvalidPath, map[string]string{
				"path":    s,
				"element": elem,
			})
		}
		path = append(path, offset+uint32(n))
	}
	return path, nil
}

// String returns the canonical "m/..." form with ' for hardened elements.
func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, elem := range p {
		if elem >= hdkeychain.HardenedKeyStart {
			fmt.Fprintf(&b, "/%d'", elem-hdkeychain.HardenedKeyStart)
			continue
		}
		fmt.Fprintf(&b, "/%d", elem)
	}
	return b.String()
}

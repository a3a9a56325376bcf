package btc

import (
	"crypto/sha256"

	// RIPEMD160 is required by the address formats: Hash160 = RIPEMD160(SHA256(x)).
	//nolint:gosec,staticcheck // G507,SA1019: protocol requirement
	"golang.org/x/crypto/ripemd160"
)

// Hash160 computes RIPEMD160(SHA256(data)).
//
//nolint:gosec // G406: RIPEMD160 usage required by the address formats
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

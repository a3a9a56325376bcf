// Package chain provides the coin identifiers, amount helpers and HTTP
// transport protection shared by the wallet engine.
package chain

// ID represents a supported Bitcoin-family coin.
type ID string

// Supported coin identifiers.
const (
	Bitcoin  ID = "bitcoin"
	Litecoin ID = "litecoin"
	Dogecoin ID = "dogecoin"
	Dash     ID = "dash"
)

// Decimals is the number of fractional digits of every supported coin.
const Decimals = 8

// BIP44 coin types for mainnet derivation paths. Test networks use 1.
const (
	CoinTypeBitcoin  uint32 = 0
	CoinTypeLitecoin uint32 = 2
	CoinTypeDogecoin uint32 = 3
	CoinTypeDash     uint32 = 5
	CoinTypeTestnet  uint32 = 1
)

// CoinType returns the BIP44 coin type for a coin on mainnet.
func (id ID) CoinType() uint32 {
	switch id {
	case Bitcoin:
		return CoinTypeBitcoin
	case Litecoin:
		return CoinTypeLitecoin
	case Dogecoin:
		return CoinTypeDogecoin
	case Dash:
		return CoinTypeDash
	default:
		return 0
	}
}

// Symbol returns the ticker of the coin.
func (id ID) Symbol() string {
	switch id {
	case Bitcoin:
		return "BTC"
	case Litecoin:
		return "LTC"
	case Dogecoin:
		return "DOGE"
	case Dash:
		return "DASH"
	default:
		return ""
	}
}

// String returns the chain identifier string.
func (id ID) String() string {
	return string(id)
}

// IsValid returns true if the chain ID is a known coin.
func (id ID) IsValid() bool {
	switch id {
	case Bitcoin, Litecoin, Dogecoin, Dash:
		return true
	default:
		return false
	}
}

// ParseChainID parses a string into an ID.
func ParseChainID(s string) (ID, bool) {
	id := ID(s)
	return id, id.IsValid()
}

// AllChains returns all known chain IDs.
func AllChains() []ID {
	return []ID{Bitcoin, Litecoin, Dogecoin, Dash}
}

package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome         = "CSWALLET_HOME"
	EnvChain        = "CSWALLET_CHAIN"
	EnvRegtest      = "CSWALLET_REGTEST"
	EnvIndexerURL   = "CSWALLET_INDEXER_URL"
	EnvPlatformURL  = "CSWALLET_PLATFORM_URL"
	EnvAddressType  = "CSWALLET_ADDRESS_TYPE"
	EnvFeeRate      = "CSWALLET_FEE_RATE"
	EnvStorage      = "CSWALLET_STORAGE"
	EnvOutputFormat = "CSWALLET_OUTPUT_FORMAT"
	EnvVerbose      = "CSWALLET_VERBOSE"
	EnvLogLevel     = "CSWALLET_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvChain); v != "" {
		cfg.Network.Chain = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvRegtest); v != "" {
		cfg.Network.Regtest = parseBool(v)
	}

	if v := os.Getenv(EnvIndexerURL); v != "" {
		cfg.Indexer.URL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvPlatformURL); v != "" {
		cfg.Platform.URL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvAddressType); v != "" {
		cfg.Wallet.AddressType = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvFeeRate); v != "" {
		cfg.Fees.Default = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvStorage); v != "" {
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims copy-paste artifacts from a URL and drops a trailing
// slash. Values that do not parse are returned trimmed.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == ' ' {
			return -1
		}
		return r
	}, raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

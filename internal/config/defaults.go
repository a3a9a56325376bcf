package config

// Default API endpoints.
const (
	DefaultIndexerURL  = "https://btc.coin.space"
	DefaultPlatformURL = "https://api.coin.space"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.cswallet",
		Network: NetworkConfig{
			Chain: "bitcoin",
		},
		Indexer: IndexerConfig{
			URL:               DefaultIndexerURL,
			RequestsPerSecond: 5,
			Burst:             10,
			Retries:           3,
			TimeoutSeconds:    30,
		},
		Platform: PlatformConfig{
			URL:      DefaultPlatformURL,
			Currency: "USD",
		},
		Fees: FeesConfig{
			Source:  "platform",
			Default: "default",
		},
		ServiceFee: ServiceFeeConfig{
			Source: "platform",
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Wallet: WalletConfig{
			TxPerPage: 5,
			MaxInputs: 650,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.cswallet/cswallet.log",
		},
	}
}

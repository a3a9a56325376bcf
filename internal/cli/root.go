// Package cli implements the cswallet command-line interface.
//
// Cobra keeps command state in package-level variables: the globals below
// are set in PersistentPreRunE and released in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/config"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/metrics"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

var (
	// Global flags
	configFile   string
	homeDir      string
	chainName    string
	networkName  string
	walletName   string
	outputFormat string
	verbose      bool
	dumpMetrics  bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	registry  *metrics.Metrics
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cswallet",
	Short: "A UTXO wallet for Bitcoin and its forks",
	Long: `cswallet is a terminal HD wallet for Bitcoin, Litecoin, Dogecoin and Dash.

It discovers used addresses across legacy, nested segwit and native segwit
accounts, estimates fees, sends and fee-bumps transactions, and sweeps
private keys into the wallet.

Example:
  cswallet wallet create main
  cswallet balance
  cswallet send --to bc1q... --amount 0.01`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if dumpMetrics && registry != nil {
			_ = registry.Dump(cmd.ErrOrStderr())
		}
		cleanup()
	},
}

// Execute runs the root command and prints any error in the active format.
func Execute() error {
	finishCommands()
	err := rootCmd.Execute()
	if err != nil {
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(os.Stderr, err, format)
	}
	return err
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	return walleterr.ExitCode(err)
}

// initGlobals resolves the configuration (file, then environment, then
// flags) and builds the logger, formatter and metrics registry.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	path := configFile
	if path == "" {
		path = config.Path(home)
	}
	var err error
	cfg, err = config.Load(path)
	switch {
	case err == nil:
	case os.IsNotExist(err) && configFile == "":
		cfg = config.Defaults()
		cfg.Home = home
	case os.IsNotExist(err):
		return walleterr.WithDetails(walleterr.ErrConfigNotFound, map[string]string{"path": path})
	default:
		return err
	}

	config.ApplyEnvironment(cfg)
	if err := applyFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		logger = config.NullLogger()
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), os.Stdout)
	registry = metrics.New()
	return nil
}

func applyFlags(c *config.Config) error {
	if homeDir != "" {
		c.Home = homeDir
	}
	if chainName != "" {
		c.Network.Chain = strings.ToLower(chainName)
	}
	switch strings.ToLower(networkName) {
	case "":
	case "mainnet":
		c.Network.Regtest = false
	case "regtest":
		c.Network.Regtest = true
	default:
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"network": networkName})
	}
	if verbose {
		c.Output.Verbose = true
		c.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		c.Output.DefaultFormat = outputFormat
	}
	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// out is a helper for CLI output.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: <home>/config.yaml)")
	flags.StringVar(&homeDir, "home", "", "cswallet data directory (default: ~/.cswallet)")
	flags.StringVar(&chainName, "chain", "", "coin: bitcoin, litecoin, dogecoin, dash")
	flags.StringVar(&networkName, "network", "", "network: mainnet, regtest")
	flags.StringVarP(&walletName, "wallet", "w", "main", "wallet name")
	flags.StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&dumpMetrics, "metrics", false, "print collected metrics to stderr on exit")
}

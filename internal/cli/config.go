package cli

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/config"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Create and inspect the cswallet configuration file.`,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Long: `Write the current settings (defaults plus environment and flags) to
<home>/config.yaml. An existing file is kept unless --force is given.

Example:
  cswallet config init --network regtest`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
)

func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	home, err := config.ExpandPath(cfg.Home)
	if err != nil {
		return "", err
	}
	return config.Path(home), nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return walleterr.WithSuggestion(
			walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"path": path}),
			"the config file exists; use --force to overwrite it",
		)
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	return output.FormatSuccess(formatter.Writer(), "Wrote "+path, formatter.Format())
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if formatter.IsJSON() {
		return formatter.Print(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = formatter.Writer().Write(data)
	return err
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	createWords       int
	createPassphrase  bool
	restorePassphrase bool
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	walletCmd = &cobra.Command{
		Use:   "wallet",
		Short: "Create, restore and inspect wallets",
		Long:  `Manage the encrypted wallet files of the selected network.`,
	}

	walletCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create a wallet with a new recovery phrase",
		Long: `Generate a BIP39 recovery phrase, derive every account of the network
and store the seed encrypted with a password. The name defaults to --wallet.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWalletCreate,
	}

	walletRestoreCmd = &cobra.Command{
		Use:   "restore [name]",
		Short: "Restore a wallet from a recovery phrase",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWalletRestore,
	}

	walletXpubCmd = &cobra.Command{
		Use:   "xpub [name]",
		Short: "Show the account public keys",
		Long:  `Print the extended public key and derivation path of every account.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWalletXpub,
	}

	walletListCmd = &cobra.Command{
		Use:   "list",
		Short: "List wallets of the selected network",
		Args:  cobra.NoArgs,
		RunE:  runWalletList,
	}
)

// createdWallet is the result of create and restore.
type createdWallet struct {
	Name        string `json:"name"`
	Network     string `json:"network"`
	AddressType string `json:"address_type"`
	Mnemonic    string `json:"mnemonic,omitempty"`
}

func (c createdWallet) RenderText(w io.Writer) error {
	out(w, "Wallet %q created on %s (%s addresses).\n", c.Name, c.Network, c.AddressType)
	if c.Mnemonic == "" {
		return nil
	}
	outln(w)
	outln(w, "Recovery phrase. Write it down and keep it offline:")
	outln(w)
	for i, word := range strings.Fields(c.Mnemonic) {
		out(w, "  %2d. %s\n", i+1, word)
	}
	return nil
}

func nameArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return walletName
}

func runWalletCreate(_ *cobra.Command, args []string) error {
	if createWords != 12 && createWords != 24 {
		return walleterr.WithSuggestion(walleterr.ErrInvalidInput, "word count must be 12 or 24")
	}
	mnemonic, err := wallet.GenerateMnemonic(createWords)
	if err != nil {
		return err
	}
	var passphrase string
	if createPassphrase {
		if passphrase, err = promptPassphraseFn(); err != nil {
			return err
		}
	}
	created, err := saveWallet(nameArg(args), mnemonic, passphrase)
	if err != nil {
		return err
	}
	created.Mnemonic = mnemonic
	return formatter.Print(created)
}

func runWalletRestore(_ *cobra.Command, args []string) error {
	input, err := promptMnemonicFn()
	if err != nil {
		return err
	}
	mnemonic := wallet.NormalizeMnemonicInput(input)
	if err := wallet.ValidateMnemonic(mnemonic); err != nil {
		if typos := wallet.DetectTypos(mnemonic); len(typos) > 0 {
			return walleterr.WithSuggestion(walleterr.ErrInvalidMnemonic, wallet.FormatTypoSuggestions(typos))
		}
		return err
	}
	var passphrase string
	if restorePassphrase {
		if passphrase, err = promptPassphraseFn(); err != nil {
			return err
		}
	}
	created, err := saveWallet(nameArg(args), mnemonic, passphrase)
	if err != nil {
		return err
	}
	return formatter.Print(created)
}

// saveWallet derives the wallet record for mnemonic and writes it
// encrypted with a new password.
func saveWallet(name, mnemonic, passphrase string) (createdWallet, error) {
	net, err := cfg.ChainNetwork()
	if err != nil {
		return createdWallet{}, err
	}
	storage, _, err := walletStorage()
	if err != nil {
		return createdWallet{}, err
	}
	if err := wallet.ValidateWalletName(name); err != nil {
		return createdWallet{}, err
	}
	exists, err := storage.Exists(name)
	if err != nil {
		return createdWallet{}, err
	}
	if exists {
		return createdWallet{}, walleterr.WithDetails(walleterr.ErrWalletExists, map[string]string{"wallet": name})
	}

	seed, err := wallet.MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return createdWallet{}, err
	}
	defer wallet.Zero(seed)

	record, err := wallet.NewWallet(name, seed, net, wallet.Paths(net, cfg.Network.Paths))
	if err != nil {
		return createdWallet{}, err
	}
	if record.AddressType, err = cfg.AddressType(net); err != nil {
		return createdWallet{}, err
	}

	password, err := promptNewPasswordFn()
	if err != nil {
		return createdWallet{}, err
	}
	defer wallet.Zero(password)
	if err := storage.Save(record, seed, password); err != nil {
		return createdWallet{}, err
	}
	logger.Debug("saved wallet %s for %s", name, net.Name())

	return createdWallet{Name: name, Network: net.Name(), AddressType: record.AddressType.String()}, nil
}

// xpubView lists account keys by address type.
type xpubView struct {
	Wallet   string        `json:"wallet"`
	Accounts []xpubAccount `json:"accounts"`
}

type xpubAccount struct {
	Type btc.AddressType `json:"type"`
	Path string          `json:"path"`
	Xpub string          `json:"xpub"`
}

func (v xpubView) RenderText(w io.Writer) error {
	for _, a := range v.Accounts {
		out(w, "%s  %s\n  %s\n", a.Type, a.Path, a.Xpub)
	}
	return nil
}

func runWalletXpub(_ *cobra.Command, args []string) error {
	storage, _, err := walletStorage()
	if err != nil {
		return err
	}
	record, err := storage.LoadMetadata(nameArg(args))
	if err != nil {
		return err
	}
	view := xpubView{Wallet: record.Name}
	for _, t := range record.PublicKey.SortedTypes() {
		entry := record.PublicKey[t]
		view.Accounts = append(view.Accounts, xpubAccount{Type: t, Path: entry.Path, Xpub: entry.Xpub})
	}
	return formatter.Print(view)
}

func runWalletList(_ *cobra.Command, _ []string) error {
	storage, _, err := walletStorage()
	if err != nil {
		return err
	}
	names, err := storage.List()
	if err != nil {
		return err
	}
	if formatter.IsJSON() {
		return formatter.Print(map[string][]string{"wallets": names})
	}
	if len(names) == 0 {
		output.Infof(formatter.Writer(), "No wallets yet. Create one with 'cswallet wallet create'.")
		return nil
	}
	tbl := output.NewTable("NAME", "ADDRESS TYPE", "CREATED")
	for _, name := range names {
		record, err := storage.LoadMetadata(name)
		if err != nil {
			tbl.AddRow(name, "?", "?")
			continue
		}
		tbl.AddRow(name, record.AddressType.String(), record.CreatedAt.Format("2006-01-02"))
	}
	return formatter.Print(tbl)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	walletCreateCmd.Flags().IntVar(&createWords, "words", 12, "recovery phrase length: 12 or 24")
	walletCreateCmd.Flags().BoolVar(&createPassphrase, "passphrase", false, "protect the seed with a BIP39 passphrase")
	walletRestoreCmd.Flags().BoolVar(&restorePassphrase, "passphrase", false, "the recovery phrase has a BIP39 passphrase")

	walletCmd.AddCommand(walletCreateCmd, walletRestoreCmd, walletXpubCmd, walletListCmd)
	rootCmd.AddCommand(walletCmd)
}

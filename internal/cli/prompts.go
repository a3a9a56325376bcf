package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

const minPasswordLength = 8

// Prompt functions are variables so tests can replace them.
//
//nolint:gochecknoglobals // swappable for tests
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
	promptPassphraseFn  = promptPassphrase
	promptMnemonicFn    = promptMnemonic
	promptConfirmFn     = promptConfirm
)

// stdinReader is shared so buffered input is not lost between prompts.
//
//nolint:gochecknoglobals // one reader per process
var stdinReader = bufio.NewReader(os.Stdin)

// promptPassword reads a line without echo. The caller zeroes the result.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() fits in int on supported platforms
	outln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassword asks for a wallet password twice.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Enter wallet password: ")
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		wallet.Zero(password)
		return nil, walleterr.WithSuggestion(walleterr.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	confirm, err := promptPasswordFn("Confirm password: ")
	if err != nil {
		wallet.Zero(password)
		return nil, err
	}
	defer wallet.Zero(confirm)

	if !bytes.Equal(password, confirm) {
		wallet.Zero(password)
		return nil, walleterr.WithSuggestion(walleterr.ErrInvalidInput, "passwords do not match")
	}
	return password, nil
}

// promptPassphrase asks for an optional BIP39 passphrase. Empty means none.
func promptPassphrase() (string, error) {
	outln(os.Stderr, "BIP39 passphrase (optional). Losing it means losing the wallet.")
	passphrase, err := promptPasswordFn("Enter passphrase: ")
	if err != nil {
		return "", err
	}
	defer wallet.Zero(passphrase)
	if len(passphrase) == 0 {
		return "", nil
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	defer wallet.Zero(confirm)
	if !bytes.Equal(passphrase, confirm) {
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, "passphrases do not match")
	}
	return string(passphrase), nil
}

// promptMnemonic reads a recovery phrase from one line of stdin.
func promptMnemonic() (string, error) {
	out(os.Stderr, "Enter recovery phrase (all words on one line): ")
	line, err := stdinReader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("reading recovery phrase: %w", err)
		}
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, "no recovery phrase entered")
	}
	return line, nil
}

// promptConfirm asks a yes/no question; anything but y/yes is no.
func promptConfirm(question string) bool {
	out(os.Stderr, "%s [y/N]: ", question)
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

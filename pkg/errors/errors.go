// Package errors provides structured error handling for the wallet engine.
// It defines sentinel errors, exit codes, and helpers for attaching
// details, suggestions and amount limits to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Exit codes used by the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitAuth     = 3 // Authentication failed
	ExitNotFound = 4 // Resource not found
	ExitFunds    = 5 // Amount outside what the wallet can spend
)

// DetailAmount is the detail key carrying the limit of an amount error.
const DetailAmount = "amount"

// WalletError is the structured error type of the wallet engine.
type WalletError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *WalletError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for WalletError.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &WalletError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// Codec errors.
	ErrInvalidAddress = &WalletError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address",
		ExitCode: ExitInput,
	}

	ErrInvalidPrivateKey = &WalletError{
		Code:     "INVALID_PRIVATE_KEY",
		Message:  "invalid private key",
		ExitCode: ExitInput,
	}

	// Amount errors.
	ErrSmallAmount = &WalletError{
		Code:     "SMALL_AMOUNT",
		Message:  "amount is below the dust threshold",
		ExitCode: ExitFunds,
	}

	ErrBigAmount = &WalletError{
		Code:     "BIG_AMOUNT",
		Message:  "amount exceeds the spendable balance",
		ExitCode: ExitFunds,
	}

	ErrBigAmountConfirmationPending = &WalletError{
		Code:     "BIG_AMOUNT_CONFIRMATION_PENDING",
		Message:  "amount is only spendable after pending funds confirm",
		ExitCode: ExitFunds,
	}

	ErrInsufficientFunds = &WalletError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "insufficient funds for transaction",
		ExitCode: ExitFunds,
	}

	ErrInsufficientFundsForReplacement = &WalletError{
		Code:     "INSUFFICIENT_FUNDS_FOR_REPLACEMENT",
		Message:  "insufficient funds to replace transaction",
		ExitCode: ExitFunds,
	}

	ErrInvalidFeeRate = &WalletError{
		Code:     "INVALID_FEE_RATE",
		Message:  "invalid fee rate",
		ExitCode: ExitInput,
	}

	ErrNotRBF = &WalletError{
		Code:     "NOT_RBF",
		Message:  "transaction cannot be replaced",
		ExitCode: ExitInput,
	}

	// Wallet errors.
	ErrWalletState = &WalletError{
		Code:     "WALLET_STATE",
		Message:  "wallet is not in a usable state",
		ExitCode: ExitGeneral,
	}

	ErrWalletNotFound = &WalletError{
		Code:     "WALLET_NOT_FOUND",
		Message:  "wallet not found",
		ExitCode: ExitNotFound,
	}

	ErrWalletExists = &WalletError{
		Code:     "WALLET_EXISTS",
		Message:  "wallet already exists",
		ExitCode: ExitInput,
	}

	ErrUnknownAddress = &WalletError{
		Code:     "UNKNOWN_ADDRESS",
		Message:  "address does not belong to the wallet",
		ExitCode: ExitNotFound,
	}

	ErrInvalidMnemonic = &WalletError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrDecryptionFailed = &WalletError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong password or corrupted file",
		ExitCode: ExitAuth,
	}

	ErrTransactionNotFound = &WalletError{
		Code:     "TRANSACTION_NOT_FOUND",
		Message:  "transaction not found",
		ExitCode: ExitNotFound,
	}

	// Network errors.
	ErrNetworkError = &WalletError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrTxRejected = &WalletError{
		Code:     "TX_REJECTED",
		Message:  "transaction rejected by network",
		ExitCode: ExitGeneral,
	}

	ErrUnsupportedNetwork = &WalletError{
		Code:     "UNSUPPORTED_NETWORK",
		Message:  "unsupported network",
		ExitCode: ExitInput,
	}

	// Config errors.
	ErrConfigNotFound = &WalletError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &WalletError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new WalletError with the given code and message.
func New(code, message string) *WalletError {
	return &WalletError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// SmallAmount reports an amount below min, the smallest accepted value.
func SmallAmount(minAmount uint64) error {
	return withAmount(ErrSmallAmount, minAmount)
}

// BigAmount reports an amount above maxAmount, the most the confirmed funds can send.
func BigAmount(maxAmount uint64) error {
	return withAmount(ErrBigAmount, maxAmount)
}

// BigAmountConfirmationPending reports an amount that only fits once
// unconfirmed funds are counted. maxAmount is the confirmed maximum.
func BigAmountConfirmationPending(maxAmount uint64) error {
	return withAmount(ErrBigAmountConfirmationPending, maxAmount)
}

func withAmount(sentinel *WalletError, amount uint64) error {
	return &WalletError{
		Code:     sentinel.Code,
		Message:  sentinel.Message,
		Details:  map[string]string{DetailAmount: strconv.FormatUint(amount, 10)},
		ExitCode: sentinel.ExitCode,
	}
}

// AmountOf returns the amount limit carried by an amount error.
func AmountOf(err error) (uint64, bool) {
	var we *WalletError
	if !errors.As(err, &we) {
		return 0, false
	}
	raw, ok := we.Details[DetailAmount]
	if !ok {
		return 0, false
	}
	v, perr := strconv.ParseUint(raw, 10, 64)
	if perr != nil {
		return 0, false
	}
	return v, true
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    fmt.Sprintf("%s: %s", msg, we.Message),
			Details:    we.Details,
			Suggestion: we.Suggestion,
			Cause:      err,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		merged := make(map[string]string, len(we.Details)+len(details))
		for k, v := range we.Details {
			merged[k] = v
		}
		for k, v := range details {
			merged[k] = v
		}
		return &WalletError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    merged,
			Suggestion: we.Suggestion,
			Cause:      we.Cause,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    we.Details,
			Suggestion: suggestion,
			Cause:      we.Cause,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var we *WalletError
	if errors.As(err, &we) {
		return we.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}

package output

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// ErrorOutput is the JSON envelope of a failed command.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed command.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// Describe converts err into its structured form.
func Describe(err error) ErrorDetail {
	var we *walleterr.WalletError
	if !errors.As(err, &we) {
		return ErrorDetail{
			Code:     walleterr.ErrGeneral.Code,
			Message:  err.Error(),
			ExitCode: walleterr.ExitGeneral,
		}
	}
	msg := we.Message
	var inner *walleterr.WalletError
	if we.Cause != nil && !errors.As(we.Cause, &inner) {
		msg = fmt.Sprintf("%s: %v", msg, we.Cause)
	}
	return ErrorDetail{
		Code:       we.Code,
		Message:    msg,
		Details:    we.Details,
		Suggestion: we.Suggestion,
		ExitCode:   we.ExitCode,
	}
}

// FormatError writes err to w in the given format.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}
	detail := Describe(err)
	if format == FormatJSON {
		return writeJSON(w, ErrorOutput{Error: detail})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", detail.Message)
	if len(detail.Details) > 0 {
		sb.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(detail.Details))
		for k := range detail.Details {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, detailValue(k, detail.Details[k]))
		}
	}
	if detail.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", detail.Suggestion)
	}
	_, err = io.WriteString(w, sb.String())
	return err
}

// detailValue shows amount limits in coins alongside satoshis.
func detailValue(key, value string) string {
	if key != walleterr.DetailAmount {
		return value
	}
	sats, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return value
	}
	return fmt.Sprintf("%s (%d sat)", chain.FormatAmount(sats), sats)
}

// FormatSuccess writes a one-line success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}

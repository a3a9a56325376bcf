package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// answerPasswords makes promptPasswordFn return answers in order.
func answerPasswords(t *testing.T, answers ...string) *[]string {
	t.Helper()
	prev := promptPasswordFn
	t.Cleanup(func() { promptPasswordFn = prev })

	var asked []string
	promptPasswordFn = func(prompt string) ([]byte, error) {
		asked = append(asked, prompt)
		if len(answers) == 0 {
			return nil, errors.New("unexpected prompt")
		}
		answer := answers[0]
		answers = answers[1:]
		return []byte(answer), nil
	}
	return &asked
}

func TestPromptNewPassword(t *testing.T) {
	t.Run("matching", func(t *testing.T) {
		asked := answerPasswords(t, testPassword, testPassword)
		password, err := promptNewPassword()
		require.NoError(t, err)
		assert.Equal(t, testPassword, string(password))
		assert.Equal(t, []string{"Enter wallet password: ", "Confirm password: "}, *asked)
	})

	t.Run("too short", func(t *testing.T) {
		asked := answerPasswords(t, "short")
		_, err := promptNewPassword()
		require.ErrorIs(t, err, walleterr.ErrInvalidInput)
		assert.Len(t, *asked, 1)
	})

	t.Run("mismatch", func(t *testing.T) {
		answerPasswords(t, testPassword, testPassword+"!")
		_, err := promptNewPassword()
		require.ErrorIs(t, err, walleterr.ErrInvalidInput)
	})
}

func TestPromptPassphrase(t *testing.T) {
	t.Run("empty means none", func(t *testing.T) {
		asked := answerPasswords(t, "")
		passphrase, err := promptPassphrase()
		require.NoError(t, err)
		assert.Empty(t, passphrase)
		assert.Len(t, *asked, 1)
	})

	t.Run("confirmed", func(t *testing.T) {
		answerPasswords(t, "extra words", "extra words")
		passphrase, err := promptPassphrase()
		require.NoError(t, err)
		assert.Equal(t, "extra words", passphrase)
	})

	t.Run("mismatch", func(t *testing.T) {
		answerPasswords(t, "extra words", "other words")
		_, err := promptPassphrase()
		require.ErrorIs(t, err, walleterr.ErrInvalidInput)
	})
}

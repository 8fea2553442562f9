package gate

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/sekure/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/term"
)

const (
	minPINLength = 4
	pinSaltSize  = 16
	handlePrefix = "argon2id"

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// PromptFunc reads one secret line. It returns io.EOF when input is closed.
type PromptFunc func(prompt string) ([]byte, error)

// TerminalAuthenticator verifies a PIN typed on the controlling terminal.
// The handle is an argon2id hash of the PIN, never the PIN itself.
type TerminalAuthenticator struct {
	Prompt PromptFunc
	Out    io.Writer
}

// NewTerminalAuthenticator reads the PIN from stdin without echo.
func NewTerminalAuthenticator(out io.Writer) *TerminalAuthenticator {
	return &TerminalAuthenticator{
		Out: out,
		Prompt: func(prompt string) ([]byte, error) {
			fmt.Fprint(out, prompt)
			defer fmt.Fprintln(out)
			return term.ReadPassword(int(os.Stdin.Fd()))
		},
	}
}

func (t *TerminalAuthenticator) Register(ctx context.Context, label string) ([]byte, error) {
	pin, err := t.Prompt(fmt.Sprintf("Choose a PIN for %q: ", label))
	if err != nil || len(pin) == 0 {
		return nil, common.ErrCancelled
	}
	defer common.WipeByteArray(pin)

	if len(pin) < minPINLength {
		return nil, fmt.Errorf("%w: PIN must be at least %d characters", common.ErrInvalidInput, minPINLength)
	}

	confirm, err := t.Prompt("Repeat the PIN: ")
	if err != nil {
		return nil, common.ErrCancelled
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pin, confirm) {
		return nil, fmt.Errorf("%w: PINs do not match", common.ErrInvalidInput)
	}
	if ctx.Err() != nil {
		return nil, common.ErrCancelled
	}

	salt := make([]byte, pinSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return encodeHandle(salt, hashPIN(pin, salt)), nil
}

func (t *TerminalAuthenticator) Verify(ctx context.Context, handle []byte) (Outcome, error) {
	salt, want, err := decodeHandle(handle)
	if err != nil {
		return Failed, err
	}

	pin, err := t.Prompt("PIN: ")
	if errors.Is(err, io.EOF) || (err == nil && len(pin) == 0) {
		return Cancelled, nil
	}
	if err != nil {
		return Failed, err
	}
	defer common.WipeByteArray(pin)

	if ctx.Err() != nil {
		return Cancelled, nil
	}
	if subtle.ConstantTimeCompare(hashPIN(pin, salt), want) != 1 {
		return Failed, nil
	}
	return Success, nil
}

func hashPIN(pin, salt []byte) []byte {
	return argon2.IDKey(pin, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func encodeHandle(salt, hash []byte) []byte {
	return []byte(strings.Join([]string{
		handlePrefix,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	}, "$"))
}

func decodeHandle(handle []byte) (salt, hash []byte, err error) {
	parts := strings.Split(string(handle), "$")
	if len(parts) != 3 || parts[0] != handlePrefix {
		return nil, nil, fmt.Errorf("%w: unknown credential format", common.ErrInvalidInput)
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[1]); err != nil {
		return nil, nil, fmt.Errorf("%w: credential salt", common.ErrInvalidInput)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[2]); err != nil || len(hash) != argonKeyLen {
		return nil, nil, fmt.Errorf("%w: credential hash", common.ErrInvalidInput)
	}
	return salt, hash, nil
}

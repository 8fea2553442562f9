package gate

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers prompts from a fixed list, then reports EOF.
func scripted(answers ...string) PromptFunc {
	return func(string) ([]byte, error) {
		if len(answers) == 0 {
			return nil, io.EOF
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
}

func register(t *testing.T, pin string) []byte {
	t.Helper()
	ta := &TerminalAuthenticator{Prompt: scripted(pin, pin)}
	handle, err := ta.Register(context.Background(), "cli")
	require.NoError(t, err)
	return handle
}

func TestTerminal_RegisterProducesHashedHandle(t *testing.T) {
	handle := register(t, "4821")

	assert.True(t, strings.HasPrefix(string(handle), "argon2id$"))
	assert.NotContains(t, string(handle), "4821")
	assert.NotEqual(t, handle, register(t, "4821"), "salted per registration")
}

func TestTerminal_Verify(t *testing.T) {
	handle := register(t, "4821")

	tests := []struct {
		name    string
		answers []string
		want    Outcome
	}{
		{"correct pin", []string{"4821"}, Success},
		{"wrong pin", []string{"0000"}, Failed},
		{"empty input cancels", []string{""}, Cancelled},
		{"eof cancels", nil, Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := &TerminalAuthenticator{Prompt: scripted(tt.answers...)}
			got, err := ta.Verify(context.Background(), handle)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminal_VerifyRejectsForeignHandle(t *testing.T) {
	ta := &TerminalAuthenticator{Prompt: scripted("4821")}
	got, err := ta.Verify(context.Background(), []byte("webauthn$abc$def"))
	assert.Equal(t, Failed, got)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestTerminal_RegisterValidation(t *testing.T) {
	ctx := context.Background()

	_, err := (&TerminalAuthenticator{Prompt: scripted("12")}).Register(ctx, "x")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = (&TerminalAuthenticator{Prompt: scripted("4821", "4822")}).Register(ctx, "x")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = (&TerminalAuthenticator{Prompt: scripted()}).Register(ctx, "x")
	assert.ErrorIs(t, err, common.ErrCancelled)

	_, err = (&TerminalAuthenticator{Prompt: func(string) ([]byte, error) {
		return nil, errors.New("not a terminal")
	}}).Register(ctx, "x")
	assert.ErrorIs(t, err, common.ErrCancelled)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "failed", Failed.String())
}

package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

const (
	maxUsernameLen = 64
	maxRecordIDLen = 128
	maxCiphertext  = 1 << 20
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func checkUsername(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLen {
		return invalid("username must be 1-%d characters", maxUsernameLen)
	}
	if strings.ContainsAny(name, "/,") || strings.TrimSpace(name) != name {
		return invalid("username contains forbidden characters")
	}
	return nil
}

func checkSalt(salt []byte) error {
	if len(salt) < cryptox.MinSaltSize {
		return invalid("salt shorter than %d bytes", cryptox.MinSaltSize)
	}
	return nil
}

func checkDigest(name string, b []byte) error {
	if len(b) != cryptox.KeySize {
		return invalid("%s must be %d bytes", name, cryptox.KeySize)
	}
	return nil
}

func checkSealed(ciphertext, nonce []byte) error {
	if len(nonce) != cryptox.NonceSize {
		return invalid("nonce must be %d bytes", cryptox.NonceSize)
	}
	if len(ciphertext) < cryptox.TagSize || len(ciphertext) > maxCiphertext {
		return invalid("ciphertext size out of range")
	}
	return nil
}

package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/common"
)

const (
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16
)

// NonceSource produces fresh random bytes. entropy.Source implements it.
type NonceSource interface {
	NextNonce(size int) ([]byte, error)
}

// SystemRandom draws straight from crypto/rand.
type SystemRandom struct{}

func (SystemRandom) NextNonce(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Sealed is one AEAD output: ciphertext with its tag and the nonce used.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
}

// Cipher performs AES-256-GCM with a fresh nonce per Encrypt call.
type Cipher struct {
	nonces NonceSource
}

func NewCipher(nonces NonceSource) *Cipher {
	if nonces == nil {
		nonces = SystemRandom{}
	}
	return &Cipher{nonces: nonces}
}

func newGCM(key DerivedKey) (cipher.AEAD, error) {
	if len(key.key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", common.ErrInvalidInput, KeySize)
	}
	block, err := aes.NewCipher(key.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key with a nonce drawn for this call only.
func (c *Cipher) Encrypt(plaintext []byte, key DerivedKey) (Sealed, error) {
	aead, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}

	nonce, err := c.nonces.NextNonce(aead.NonceSize())
	if err != nil {
		return Sealed{}, fmt.Errorf("nonce: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return Sealed{}, fmt.Errorf("%w: nonce source returned %d bytes", common.ErrInvalidInput, len(nonce))
	}

	return Sealed{Ciphertext: aead.Seal(nil, nonce, plaintext, nil), Nonce: nonce}, nil
}

// Decrypt opens s under key. Every tag mismatch is reported as
// ErrDecryptionFailure with no further detail.
func (c *Cipher) Decrypt(s Sealed, key DerivedKey) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(s.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", common.ErrInvalidInput, aead.NonceSize())
	}
	if len(s.Ciphertext) < aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", common.ErrInvalidInput)
	}

	plaintext, err := aead.Open(nil, s.Nonce, s.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptionFailure
	}
	return plaintext, nil
}

// EncryptJSON marshals v to JSON and seals it.
func (c *Cipher) EncryptJSON(v any, key DerivedKey) (Sealed, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return Sealed{}, err
	}
	defer common.WipeByteArray(plaintext)
	return c.Encrypt(plaintext, key)
}

// DecryptJSON opens s and unmarshals the plaintext into v. A payload that
// authenticates but does not parse is reported as ErrDecryptionFailure too,
// so callers never see a half-filled value.
func (c *Cipher) DecryptJSON(s Sealed, key DerivedKey, v any) error {
	plaintext, err := c.Decrypt(s, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: payload is not valid JSON", common.ErrDecryptionFailure)
	}
	return nil
}

func constantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

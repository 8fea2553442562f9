package cryptox

import (
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of every symmetric key in bytes (AES-256).
	KeySize = 32
	// SaltSize is the length of salts generated for new accounts and domains.
	SaltSize = 32
	// MinSaltSize is the shortest salt DeriveKey accepts.
	MinSaltSize = 16

	verifierLabel = "_verify"
	domainPrefix  = "sekure/v1/"
)

// Iterations is the PBKDF2-HMAC-SHA256 work factor. Tests in other packages
// lower it; production code must not touch it.
var Iterations = 600_000

// DerivedKey is a 256-bit symmetric key tagged with the trust domain it
// belongs to.
type DerivedKey struct {
	domain KeyDomain
	key    []byte
}

// NewDerivedKey wraps raw key bytes, e.g. ones restored from a session store.
// The bytes are copied.
func NewDerivedKey(domain KeyDomain, raw []byte) (DerivedKey, error) {
	if len(raw) != KeySize {
		return DerivedKey{}, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrInvalidInput, KeySize, len(raw))
	}
	k := make([]byte, KeySize)
	copy(k, raw)
	return DerivedKey{domain: domain, key: k}, nil
}

func (k DerivedKey) Domain() KeyDomain { return k.domain }

// IsZero reports whether k holds no key material.
func (k DerivedKey) IsZero() bool { return len(k.key) == 0 }

// Export returns a copy of the key bytes for session storage.
func (k DerivedKey) Export() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// Equal compares key material in constant time.
func (k DerivedKey) Equal(other DerivedKey) bool {
	return k.domain == other.domain && constantTimeEqual(k.key, other.key)
}

// Wipe zeroes the key bytes shared by every copy of k.
func (k DerivedKey) Wipe() {
	common.WipeByteArray(k.key)
}

func checkSalt(salt []byte) error {
	if len(salt) < MinSaltSize {
		return fmt.Errorf("%w: salt must be at least %d bytes, got %d", common.ErrInvalidInput, MinSaltSize, len(salt))
	}
	return nil
}

func slowHash(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, Iterations, KeySize, sha256.New)
}

// DeriveKey turns the master secret into the personal encryption key.
// The secret is treated as opaque bytes; only a structurally invalid salt
// is an error.
func DeriveKey(secret, salt []byte) (DerivedKey, error) {
	if err := checkSalt(salt); err != nil {
		return DerivedKey{}, err
	}
	return DerivedKey{domain: Personal(), key: slowHash(secret, salt)}, nil
}

// DeriveVerifier derives the login verification digest. It uses the salt
// extended by a fixed label, so the digest shares no PBKDF2 output with the
// encryption key.
func DeriveVerifier(secret, salt []byte) ([]byte, error) {
	if err := checkSalt(salt); err != nil {
		return nil, err
	}
	labelled := make([]byte, 0, len(salt)+len(verifierLabel))
	labelled = append(labelled, salt...)
	labelled = append(labelled, verifierLabel...)
	return slowHash(secret, labelled), nil
}

// DomainPassphrase is the synthetic secret for domains that have no human
// secret of their own.
func DomainPassphrase(domain KeyDomain) ([]byte, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	switch domain.Kind {
	case KindGroup, KindChildAccount:
		return []byte(domainPrefix + domain.Kind.String() + "/" + domain.ID), nil
	default:
		return nil, fmt.Errorf("%w: %s keys are not derivable from a salt", common.ErrKeyUnavailable, domain.Kind)
	}
}

// DeriveDomainKey derives the key of a Group or ChildAccount domain from the
// domain's salt. Personal keys need the master secret and share keys exist
// only inside their locator, so both report ErrKeyUnavailable.
func DeriveDomainKey(domain KeyDomain, salt []byte) (DerivedKey, error) {
	passphrase, err := DomainPassphrase(domain)
	if err != nil {
		return DerivedKey{}, err
	}
	if err := checkSalt(salt); err != nil {
		return DerivedKey{}, err
	}
	return DerivedKey{domain: domain, key: slowHash(passphrase, salt)}, nil
}

// NewShareKey draws a fresh random key for a single share.
func NewShareKey(src NonceSource) (DerivedKey, error) {
	raw, err := src.NextNonce(KeySize)
	if err != nil {
		return DerivedKey{}, fmt.Errorf("share key: %w", err)
	}
	defer common.WipeByteArray(raw)
	return NewDerivedKey(ShareLink("pending"), raw)
}

// WithDomain returns a copy of k retagged to domain. Used once the server
// assigns a share id.
func (k DerivedKey) WithDomain(domain KeyDomain) DerivedKey {
	return DerivedKey{domain: domain, key: k.key}
}

// Package metadata stores small client-side values in the local SQLite
// database: the offline login material and the strong-auth credential.
package metadata

import "context"

// Well-known keys.
const (
	KeyUsername       = "username"
	KeySalt           = "salt"
	KeyVerifier       = "verifier"
	KeyGateCredential = "gate_credential"
	KeyGateLabel      = "gate_label"
	KeyAccessToken    = "access_token"
)

// Repository is a byte-valued key/value table. Get returns (nil, nil) for
// an absent key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMany(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Account is the material needed to check a master secret offline.
type Account struct {
	Username string
	Salt     []byte
	Verifier []byte
}

// SaveAccount stores a for offline login.
func SaveAccount(ctx context.Context, r Repository, a Account) error {
	return r.SetMany(ctx, map[string][]byte{
		KeyUsername: []byte(a.Username),
		KeySalt:     a.Salt,
		KeyVerifier: a.Verifier,
	})
}

// LoadAccount returns the stored account, or ok=false when none is complete.
func LoadAccount(ctx context.Context, r Repository) (a Account, ok bool, err error) {
	m, err := r.GetMany(ctx, KeyUsername, KeySalt, KeyVerifier)
	if err != nil {
		return Account{}, false, err
	}
	username, salt, verifier := m[KeyUsername], m[KeySalt], m[KeyVerifier]
	if len(username) == 0 || len(salt) == 0 || len(verifier) == 0 {
		return Account{}, false, nil
	}
	return Account{Username: string(username), Salt: salt, Verifier: verifier}, true, nil
}

// ForgetAccount drops the offline login material and the access token and
// leaves other keys.
func ForgetAccount(ctx context.Context, r Repository) error {
	return r.Delete(ctx, KeyUsername, KeySalt, KeyVerifier, KeyAccessToken)
}

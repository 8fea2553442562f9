package sessionstore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/google/uuid"
)

const tokenSecretSize = 32

// SessionToken identifies a session and carries the secret that unwraps its
// persisted keys. Its encoded form goes into common.SessionEnvVar and never
// to disk.
type SessionToken struct {
	ID     string
	Secret []byte
}

func NewSessionToken() (SessionToken, error) {
	secret := make([]byte, tokenSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return SessionToken{}, err
	}
	return SessionToken{ID: uuid.NewString(), Secret: secret}, nil
}

// Encode renders the token as "<id>.<base64url secret>".
func (t SessionToken) Encode() string {
	return t.ID + "." + base64.RawURLEncoding.EncodeToString(t.Secret)
}

func ParseSessionToken(s string) (SessionToken, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return SessionToken{}, fmt.Errorf("%w: malformed session token", common.ErrInvalidInput)
	}
	if _, err := uuid.Parse(id); err != nil {
		return SessionToken{}, fmt.Errorf("%w: malformed session id", common.ErrInvalidInput)
	}
	raw, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil || len(raw) != tokenSecretSize {
		return SessionToken{}, fmt.Errorf("%w: malformed session secret", common.ErrInvalidInput)
	}
	return SessionToken{ID: id, Secret: raw}, nil
}

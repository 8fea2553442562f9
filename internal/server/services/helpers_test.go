package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/server/config"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:         "test-secret",
		AccessTokenTTL:    time.Hour,
		RecoveryTicketTTL: time.Minute,
		MaxShareTTL:       24 * time.Hour,
		ShareRetention:    30 * 24 * time.Hour,
		RotationTimeout:   10 * time.Minute,
	}
}

func filled(b byte, n int) []byte { return bytes.Repeat([]byte{b}, n) }

// register creates a user with a fixed salt, verifier and recovery token.
func register(t *testing.T, store *fakeStore, name string) *UserService {
	t.Helper()
	svc := NewUserService(nil, store, testConfig())
	_, err := svc.Register(context.Background(), name, filled(1, 32), filled(2, 32), api.HashRecoveryToken("rt-"+name))
	require.NoError(t, err)
	return svc
}

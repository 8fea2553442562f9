package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/client/keyring"
	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sekure/internal/client/sessionstore"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// Session is the handle for one authenticated user. It owns the key cache;
// nothing else holds derived keys. Lock or Logout destroys it.
type Session struct {
	Username string

	deps    Deps
	token   sessionstore.SessionToken
	keys    *keyring.Manager
	offline bool
	closed  bool
}

func newSession(ctx context.Context, d Deps, username string, token sessionstore.SessionToken, offline bool) (*Session, error) {
	persisted, err := sessionstore.NewSQLiteStore(ctx, d.DB, token, d.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	store := sessionstore.Layered{Fast: sessionstore.NewMemoryStore(), Slow: persisted}

	return &Session{
		Username: username,
		deps:     d,
		token:    token,
		keys:     keyring.New(store, d.Client, keyring.WithLogger(d.Logger)),
		offline:  offline,
	}, nil
}

// Token is the encoded session token to export as common.SessionEnvVar so a
// later process can Resume.
func (s *Session) Token() string { return s.token.Encode() }

// Offline reports whether the session was opened without the server.
func (s *Session) Offline() bool { return s.offline }

// Key returns the key of domain, deriving and caching it on first use.
func (s *Session) Key(ctx context.Context, domain cryptox.KeyDomain) (cryptox.DerivedKey, error) {
	if s.closed {
		return cryptox.DerivedKey{}, fmt.Errorf("%w: session closed", common.ErrKeyUnavailable)
	}
	return s.keys.GetKey(ctx, domain)
}

// Lock drops every cached key and closes the strong-auth grace window. The
// account stays known locally, so the next login can work offline.
func (s *Session) Lock(ctx context.Context) error {
	s.closed = true
	if s.deps.Gate != nil {
		s.deps.Gate.Close()
	}
	return s.keys.Clear(ctx)
}

// Logout locks the session and forgets the account and its cached records.
func (s *Session) Logout(ctx context.Context) error {
	s.deps.Client.SetToken("")
	return errors.Join(
		s.Lock(ctx),
		metadata.ForgetAccount(ctx, s.deps.metadata()),
		s.deps.records().Clear(ctx),
	)
}

func (s *Session) requireOnline() error {
	if s.offline {
		return fmt.Errorf("%w: session is offline, log in again while connected", common.ErrNetworkFailure)
	}
	return nil
}

// swapPersonal replaces the cached personal key.
func (s *Session) swapPersonal(ctx context.Context, key cryptox.DerivedKey) error {
	return s.keys.Put(ctx, key)
}

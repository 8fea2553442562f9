package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sekure/internal/client/sessionstore"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

const recoveryTokenSize = 32

type AuthService struct {
	deps Deps
}

func NewAuthService(d Deps) *AuthService {
	return &AuthService{deps: d.withDefaults()}
}

// Register creates the account and returns its recovery token. The token is
// shown to the user once and is not stored anywhere on the client.
func (a *AuthService) Register(ctx context.Context, username string, secret []byte) (string, error) {
	if username == "" {
		return "", fmt.Errorf("%w: username is required", common.ErrInvalidInput)
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	verifier, err := cryptox.DeriveVerifier(secret, salt)
	if err != nil {
		return "", err
	}

	token, err := common.MakeRandHexString(recoveryTokenSize)
	if err != nil {
		return "", err
	}

	err = a.deps.Client.Register(ctx, api.RegisterRequest{
		Username:          username,
		Salt:              salt,
		Verifier:          verifier,
		RecoveryTokenHash: api.HashRecoveryToken(token),
	})
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	a.deps.Logger.Info(ctx, "account registered", "username", username)
	return token, nil
}

// Login authenticates online and falls back to the locally cached verifier
// when the backing store is unreachable. The secret is used for exactly one
// key derivation and is not retained.
func (a *AuthService) Login(ctx context.Context, username string, secret []byte) (*Session, error) {
	session, err := a.onlineLogin(ctx, username, secret)
	if errors.Is(err, common.ErrNetworkFailure) {
		a.deps.Logger.Warn(ctx, "backing store unreachable, trying offline login")
		return a.offlineLogin(ctx, username, secret)
	}
	return session, err
}

func (a *AuthService) onlineLogin(ctx context.Context, username string, secret []byte) (*Session, error) {
	salt, err := a.deps.Client.GetSalt(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get salt: %w", err)
	}
	verifier, err := cryptox.DeriveVerifier(secret, salt)
	if err != nil {
		return nil, err
	}

	tok, err := a.deps.Client.Login(ctx, username, verifier)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	meta := a.deps.metadata()
	if err := metadata.SaveAccount(ctx, meta, metadata.Account{Username: username, Salt: salt, Verifier: verifier}); err != nil {
		return nil, fmt.Errorf("save offline data: %w", err)
	}
	if err := meta.Set(ctx, metadata.KeyAccessToken, []byte(tok.AccessToken)); err != nil {
		return nil, err
	}

	return a.open(ctx, username, secret, salt, false)
}

func (a *AuthService) offlineLogin(ctx context.Context, username string, secret []byte) (*Session, error) {
	acc, ok, err := metadata.LoadAccount(ctx, a.deps.metadata())
	if err != nil {
		return nil, err
	}
	if !ok || acc.Username != username {
		return nil, fmt.Errorf("%w: no offline data for %q", common.ErrNetworkFailure, username)
	}

	candidate, err := cryptox.DeriveVerifier(secret, acc.Salt)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(candidate, acc.Verifier) != 1 {
		return nil, common.ErrorUnauthorized
	}
	return a.open(ctx, username, secret, acc.Salt, true)
}

// open starts a session and derives the personal key once.
func (a *AuthService) open(ctx context.Context, username string, secret, salt []byte, offline bool) (*Session, error) {
	token, err := sessionstore.NewSessionToken()
	if err != nil {
		return nil, err
	}
	s, err := newSession(ctx, a.deps, username, token, offline)
	if err != nil {
		return nil, err
	}

	held := make([]byte, len(secret))
	copy(held, secret)
	s.keys.ArmPersonal(func() (cryptox.DerivedKey, error) {
		defer common.WipeByteArray(held)
		return cryptox.DeriveKey(held, salt)
	})

	if _, err := s.Key(ctx, cryptox.Personal()); err != nil {
		return nil, err
	}
	a.deps.Logger.Info(ctx, "session opened", "username", username, "offline", offline)
	return s, nil
}

// Resume reattaches to a session started by an earlier process. It fails
// with common.ErrKeyUnavailable once the session was locked or expired.
func (a *AuthService) Resume(ctx context.Context, encoded string) (*Session, error) {
	token, err := sessionstore.ParseSessionToken(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyUnavailable, err)
	}

	meta := a.deps.metadata()
	acc, ok, err := metadata.LoadAccount(ctx, meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no account on this device", common.ErrKeyUnavailable)
	}

	accessToken, err := meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return nil, err
	}

	s, err := newSession(ctx, a.deps, acc.Username, token, len(accessToken) == 0)
	if err != nil {
		return nil, err
	}
	if _, err := s.Key(ctx, cryptox.Personal()); err != nil {
		return nil, err
	}
	a.deps.Client.SetToken(string(accessToken))
	return s, nil
}

func (a *AuthService) Ping(ctx context.Context) error {
	return a.deps.Client.Ping(ctx)
}

// Close wipes the in-process access token.
func (a *AuthService) Close(context.Context) error {
	a.deps.Client.SetToken("")
	return nil
}

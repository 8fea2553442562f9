package sessionstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/dbx"
	"golang.org/x/crypto/hkdf"
)

const wrapInfo = "sekure/v1/session-wrap"

// SQLiteStore persists keys wrapped under a key derived from a SessionToken,
// so a later process in the same shell session can pick them up. Rows carry
// an expiry and are unusable without the token.
type SQLiteStore struct {
	db      dbx.DBTX
	session string
	aead    cipher.AEAD
	ttl     time.Duration
	now     func() time.Time
}

// NewSQLiteStore opens the store for token and purges expired rows of every
// session.
func NewSQLiteStore(ctx context.Context, db dbx.DBTX, token SessionToken, ttl time.Duration) (*SQLiteStore, error) {
	wrapKey := make([]byte, cryptox.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, token.Secret, []byte(token.ID), []byte(wrapInfo)), wrapKey); err != nil {
		return nil, err
	}
	defer common.WipeByteArray(wrapKey)

	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, session: token.ID, aead: aead, ttl: ttl, now: time.Now}
	if err := s.PurgeExpired(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// additional data binds a wrapped key to its session and domain.
func (s *SQLiteStore) ad(domain cryptox.KeyDomain) []byte {
	return []byte(s.session + "|" + domain.String())
}

func (s *SQLiteStore) Put(ctx context.Context, domain cryptox.KeyDomain, key []byte) error {
	defer common.WipeByteArray(key)
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key for %s", common.ErrInvalidInput, domain)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	wrapped := s.aead.Seal(nil, nonce, key, s.ad(domain))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_keys (session_id, domain, nonce, wrapped, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, domain) DO UPDATE SET
			nonce = excluded.nonce, wrapped = excluded.wrapped, expires_at = excluded.expires_at
	`, s.session, domain.String(), nonce, wrapped, s.now().Add(s.ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to store session key %s: %w", domain, err)
	}
	return nil
}

// Get treats an expired row and a row that fails to unwrap the same as a
// missing one.
func (s *SQLiteStore) Get(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	var (
		nonce, wrapped []byte
		expiresAt      int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT nonce, wrapped, expires_at FROM session_keys WHERE session_id = ? AND domain = ?`,
		s.session, domain.String()).Scan(&nonce, &wrapped, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyUnavailable, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session key %s: %w", domain, err)
	}

	if !s.now().Before(time.Unix(expiresAt, 0)) {
		_ = s.Delete(ctx, domain)
		return nil, fmt.Errorf("%w: %s session expired", common.ErrKeyUnavailable, domain)
	}

	if len(nonce) != s.aead.NonceSize() {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyUnavailable, domain)
	}
	key, err := s.aead.Open(nil, nonce, wrapped, s.ad(domain))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyUnavailable, domain)
	}
	return key, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, domain cryptox.KeyDomain) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_keys WHERE session_id = ? AND domain = ?`, s.session, domain.String())
	if err != nil {
		return fmt.Errorf("failed to delete session key %s: %w", domain, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_keys WHERE session_id = ?`, s.session); err != nil {
		return fmt.Errorf("failed to clear session keys: %w", err)
	}
	return nil
}

// ForgetAll removes the stored keys of every session, expired or not. It
// runs when the account's key generation changes, so no old session can
// unwrap a key that is no longer current.
func ForgetAll(ctx context.Context, db dbx.DBTX) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM session_keys`); err != nil {
		return fmt.Errorf("failed to forget session keys: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows of all sessions.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_keys WHERE expires_at <= ?`, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to purge session keys: %w", err)
	}
	return nil
}

// Touch pushes the expiry of every key in the session ttl into the future.
func (s *SQLiteStore) Touch(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_keys SET expires_at = ? WHERE session_id = ?`, s.now().Add(s.ttl).Unix(), s.session)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// Layered reads through to a slower store on a miss and fills the faster
// one. Writes and deletes go to both.
type Layered struct {
	Fast Store
	Slow Store
}

func (l Layered) Put(ctx context.Context, domain cryptox.KeyDomain, key []byte) error {
	slowCopy := make([]byte, len(key))
	copy(slowCopy, key)
	if err := l.Fast.Put(ctx, domain, key); err != nil {
		common.WipeByteArray(slowCopy)
		return err
	}
	return l.Slow.Put(ctx, domain, slowCopy)
}

func (l Layered) Get(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	if key, err := l.Fast.Get(ctx, domain); err == nil {
		return key, nil
	} else if !errors.Is(err, common.ErrKeyUnavailable) {
		return nil, err
	}

	key, err := l.Slow.Get(ctx, domain)
	if err != nil {
		return nil, err
	}
	fastCopy := make([]byte, len(key))
	copy(fastCopy, key)
	_ = l.Fast.Put(ctx, domain, fastCopy)
	return key, nil
}

func (l Layered) Delete(ctx context.Context, domain cryptox.KeyDomain) error {
	return errors.Join(l.Fast.Delete(ctx, domain), l.Slow.Delete(ctx, domain))
}

func (l Layered) Clear(ctx context.Context) error {
	return errors.Join(l.Fast.Clear(ctx), l.Slow.Clear(ctx))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// ShareService creates and resolves share links. The share key is fresh
// per share and is never sent to the backing store.
type ShareService struct {
	deps    Deps
	baseURL string
}

func NewShareService(d Deps, baseURL string) *ShareService {
	return &ShareService{deps: d.withDefaults(), baseURL: baseURL}
}

func toWirePolicy(p models.AccessPolicy) api.AccessPolicy {
	return api.AccessPolicy{Mode: string(p.Mode), Usernames: p.Usernames}
}

// Create encrypts rec under a new share key and returns the locator. The
// backing store drops the ciphertext after ttl.
func (sh *ShareService) Create(ctx context.Context, s *Session, rec models.Record, ttl time.Duration, policy models.AccessPolicy) (Locator, error) {
	if err := s.requireOnline(); err != nil {
		return Locator{}, err
	}
	if ttl < time.Second {
		return Locator{}, fmt.Errorf("%w: ttl must be at least one second", common.ErrInvalidInput)
	}
	if err := rec.Validate(); err != nil {
		return Locator{}, err
	}
	if err := policy.Validate(); err != nil {
		return Locator{}, err
	}

	key, err := cryptox.NewShareKey(sh.deps.Nonces)
	if err != nil {
		return Locator{}, err
	}
	defer key.Wipe()

	sealed, err := sh.deps.Cipher.EncryptJSON(rec, key)
	if err != nil {
		return Locator{}, err
	}

	resp, err := sh.deps.Client.CreateShare(ctx, api.CreateShareRequest{
		Ciphertext:   sealed.Ciphertext,
		Nonce:        sealed.Nonce,
		TTLSeconds:   int64(ttl / time.Second),
		AccessPolicy: toWirePolicy(policy),
	})
	if err != nil {
		return Locator{}, fmt.Errorf("create share: %w", err)
	}

	// The locator gets its own copy; key is wiped on return.
	raw := key.Export()
	defer common.WipeByteArray(raw)
	owned, err := cryptox.NewDerivedKey(cryptox.ShareLink(resp.ID), raw)
	if err != nil {
		return Locator{}, err
	}
	loc := Locator{Base: sh.baseURL, ID: resp.ID, Key: owned}
	sh.deps.Logger.Info(ctx, "share created", "share", loc.Redacted(), "expires_at", resp.ExpiresAt)
	return loc, nil
}

// Resolve fetches and decrypts a share. It fails with exactly one of
// common.ErrShareExpired, ErrShareDenied, ErrShareInvalid, or
// ErrNetworkFailure. Any local decryption failure is ErrShareInvalid.
func (sh *ShareService) Resolve(ctx context.Context, locator string) (models.SharedRecord, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return models.SharedRecord{}, err
	}
	defer loc.Key.Wipe()

	share, err := sh.deps.Client.GetShare(ctx, loc.ID)
	if err != nil {
		return models.SharedRecord{}, err
	}

	var rec models.Record
	sealed := cryptox.Sealed{Ciphertext: share.Ciphertext, Nonce: share.Nonce}
	if err := sh.deps.Cipher.DecryptJSON(sealed, loc.Key, &rec); err != nil {
		if !errors.Is(err, common.ErrDecryptionFailure) && !errors.Is(err, common.ErrInvalidInput) {
			sh.deps.Logger.Debug(ctx, "unexpected share decrypt error", "error", err.Error())
		}
		return models.SharedRecord{}, common.ErrShareInvalid
	}

	return models.SharedRecord{
		Record:       rec,
		CreatorLabel: share.CreatorLabel,
		ExpiresAt:    share.ExpiresAt,
	}, nil
}

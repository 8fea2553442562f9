package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/server/config"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
)

// SecretService runs the server half of a master secret change: it issues a
// pending salt to a caller that proves the current secret, and later makes
// that salt current together with the new verifier. One change runs per
// account at a time, whichever device started it.
type SecretService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	timeout     time.Duration
	now         func() time.Time
}

func NewSecretService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SecretService {
	return &SecretService{db: db, repomanager: m, timeout: cfg.RotationTimeout, now: time.Now}
}

// BeginRotation checks oldVerifier and stores a fresh pending salt. The
// current salt and verifier stay valid until CommitRotation.
//
// While another change of the same account is pending and younger than the
// rotation timeout, it fails with common.ErrRotationInProgress.
func (s *SecretService) BeginRotation(ctx context.Context, userID string, oldVerifier []byte) ([]byte, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !checkVerifier(user.Verifier, oldVerifier) {
		return nil, common.ErrorUnauthorized
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	now := s.now().UTC()
	if err := repo.SetPendingSalt(ctx, userID, salt, now, now.Add(-s.timeout)); err != nil {
		if errors.Is(err, common.ErrRotationInProgress) {
			return nil, err
		}
		return nil, common.ErrorInternal
	}
	return salt, nil
}

// CommitRotation makes salt current. salt must be the pending one issued by
// BeginRotation; anything else is rejected as invalid input.
func (s *SecretService) CommitRotation(ctx context.Context, userID string, salt, verifier []byte) error {
	if err := checkSalt(salt); err != nil {
		return err
	}
	if err := checkDigest("verifier", verifier); err != nil {
		return err
	}

	err := s.repomanager.Users(s.db).CommitSecret(ctx, userID, salt, verifier)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return invalid("salt was not issued for this account")
	default:
		return common.ErrorInternal
	}
}

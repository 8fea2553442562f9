package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/sekure/internal/api"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/auth"
	"github.com/dmitrijs2005/sekure/internal/server/config"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
)

const recoveryTokenSize = 32

// RecoveryTicket is what StartRecovery hands back: a ticket for
// CompleteRecovery, the salt the new secret must be derived with, and the
// replacement recovery token.
type RecoveryTicket struct {
	Ticket        string
	Salt          []byte
	RecoveryToken string
}

// RecoveryService resets an account's salt and verifier on presentation of
// its recovery token. Personal records were sealed under the lost secret, so
// completing a recovery deletes them together with the credential change.
type RecoveryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	ticketTTL   time.Duration
}

func NewRecoveryService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *RecoveryService {
	return &RecoveryService{
		db:          db,
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		ticketTTL:   cfg.RecoveryTicketTTL,
	}
}

// StartRecovery checks the token against the stored hash and stages a new
// salt and recovery token. Until CompleteRecovery runs, the old secret and
// the old recovery token keep working.
func (s *RecoveryService) StartRecovery(ctx context.Context, username, recoveryToken string) (*RecoveryTicket, error) {
	if username == "" || recoveryToken == "" {
		return nil, invalid("username and recovery token are required")
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if subtle.ConstantTimeCompare(user.RecoveryTokenHash, api.HashRecoveryToken(recoveryToken)) != 1 {
		return nil, common.ErrorUnauthorized
	}

	next, err := common.MakeRandHexString(recoveryTokenSize)
	if err != nil {
		return nil, common.ErrorInternal
	}
	salt := common.GenerateRandByteArray(cryptox.SaltSize)

	if err := repo.BeginRecovery(ctx, user.ID, salt, api.HashRecoveryToken(next)); err != nil {
		return nil, common.ErrorInternal
	}

	ticket, err := auth.GenerateRecoveryTicket(user.ID, salt, s.jwtSecret, s.ticketTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &RecoveryTicket{Ticket: ticket, Salt: salt, RecoveryToken: next}, nil
}

// CompleteRecovery installs verifier for the salt the ticket was issued
// with and drops the account's personal records. A ticket works once:
// afterwards the staged salt is gone.
func (s *RecoveryService) CompleteRecovery(ctx context.Context, ticket string, verifier []byte) error {
	if err := checkDigest("verifier", verifier); err != nil {
		return err
	}

	userID, salt, err := auth.ParseRecoveryTicket(ticket, s.jwtSecret)
	if err != nil {
		return common.ErrorUnauthorized
	}

	err = s.repomanager.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).CompleteRecovery(ctx, userID, salt, verifier); err != nil {
			return err
		}
		_, err := s.repomanager.Records(tx).DeleteDomain(ctx, userID, cryptox.Personal().String())
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrorUnauthorized
	default:
		return common.ErrorInternal
	}
}

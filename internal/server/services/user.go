// Package services contains server-side business logic. This file implements
// UserService: registration, salt lookup and verifier login.
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/server/auth"
	"github.com/dmitrijs2005/sekure/internal/server/config"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AccessToken is a signed bearer token and the moment it stops working.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// UserService provides authentication-related operations.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenTTL,
	}
}

// Register creates a user. The server stores the salt, the verifier and the
// hash of the recovery token; it never sees the secret or any key.
func (s *UserService) Register(ctx context.Context, username string, salt, verifier, recoveryHash []byte) (*models.User, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if err := checkSalt(salt); err != nil {
		return nil, err
	}
	if err := checkDigest("verifier", verifier); err != nil {
		return nil, err
	}
	if err := checkDigest("recovery token hash", recoveryHash); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:                uuid.NewString(),
		UserName:          username,
		Salt:              salt,
		Verifier:          verifier,
		RecoveryTokenHash: recoveryHash,
	}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// GetSalt returns the user's stored salt. For an unknown user it returns a
// salt derived from the server secret and the name, so repeated lookups of a
// missing account look like lookups of a real one.
func (s *UserService) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.decoySalt(userName), nil
		}
		return nil, common.ErrorInternal
	}
	return user.Salt, nil
}

// Login verifies the provided verifierCandidate against the stored verifier and,
// on success, returns a new access token.
func (s *UserService) Login(ctx context.Context, userName string, verifierCandidate []byte) (*AccessToken, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !checkVerifier(user.Verifier, verifierCandidate) {
		return nil, common.ErrorUnauthorized
	}
	return s.generateAccessToken(user)
}

func (s *UserService) decoySalt(userName string) []byte {
	mac := hmac.New(sha256.New, s.jwtSecret)
	mac.Write([]byte("salt:" + userName))
	return mac.Sum(nil)[:cryptox.SaltSize]
}

func (s *UserService) generateAccessToken(user *models.User) (*AccessToken, error) {
	tok, expires, err := auth.GenerateToken(user.ID, user.UserName, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &AccessToken{Token: tok, ExpiresAt: expires}, nil
}

func checkVerifier(verifier []byte, candidate []byte) bool {
	return len(verifier) > 0 && subtle.ConstantTimeCompare(verifier, candidate) == 1
}

package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sekure/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetPendingSalt(ctx context.Context, id string, salt []byte, at, staleBefore time.Time) error
	CommitSecret(ctx context.Context, id string, salt, verifier []byte) error
	BeginRecovery(ctx context.Context, id string, salt, recoveryHash []byte) error
	CompleteRecovery(ctx context.Context, id string, salt, verifier []byte) error
}

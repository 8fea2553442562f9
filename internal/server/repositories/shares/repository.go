package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sekure/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Share) (*models.Share, error)
	Get(ctx context.Context, id string) (*models.Share, error)
	// Purge drops the ciphertext of share id and leaves a tombstone that
	// keeps the id and expiry.
	Purge(ctx context.Context, id string, now time.Time) error
	// PurgeExpired tombstones every share expired at now and returns one
	// blob key per purged share, empty for inline ciphertext.
	PurgeExpired(ctx context.Context, now time.Time) ([]string, error)
	// DeleteTombstones removes tombstones of shares that expired before
	// before.
	DeleteTombstones(ctx context.Context, before time.Time) (int64, error)
}

package records

import (
	"context"

	"github.com/dmitrijs2005/sekure/internal/server/models"
)

type Repository interface {
	List(ctx context.Context, ownerID, domain string) ([]*models.Record, error)
	Get(ctx context.Context, ownerID, id string) (*models.Record, error)
	Upsert(ctx context.Context, rec *models.Record) (*models.Record, error)
	Delete(ctx context.Context, ownerID, id string) error
	// DeleteDomain removes every record of the owner in domain and returns
	// how many went away.
	DeleteDomain(ctx context.Context, ownerID, domain string) (int64, error)
}

package records

import (
	"context"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

type Repository interface {
	// Upsert inserts or replaces one record by id.
	Upsert(ctx context.Context, rec models.EncryptedRecord) error
	// ReplaceDomain swaps the cached contents of a domain for recs.
	ReplaceDomain(ctx context.Context, domain cryptox.KeyDomain, recs []models.EncryptedRecord) error
	ListByDomain(ctx context.Context, domain cryptox.KeyDomain) ([]models.EncryptedRecord, error)
	// GetByID returns common.ErrorNotFound when the id is not cached.
	GetByID(ctx context.Context, id string) (models.EncryptedRecord, error)
	DeleteByID(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

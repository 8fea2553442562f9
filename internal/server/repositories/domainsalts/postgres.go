// Package domainsalts stores the shared salt of each group and child
// account key domain.
package domainsalts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate is a single statement, so concurrent first requests for the
// same domain agree on one salt.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, domain string, candidate []byte) ([]byte, error) {
	query := `
		INSERT INTO domain_salts (domain, salt) VALUES ($1, $2)
		ON CONFLICT (domain) DO UPDATE SET domain = EXCLUDED.domain
		RETURNING salt
	`
	var salt []byte
	if err := r.db.QueryRowContext(ctx, query, domain, candidate).Scan(&salt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return salt, nil
}

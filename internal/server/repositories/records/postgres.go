// Package records stores encrypted vault entries, scoped by owner.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns the owner's records in domain, oldest update first.
func (r *PostgresRepository) List(ctx context.Context, ownerID, domain string) ([]*models.Record, error) {
	query := `
		SELECT id, owner_id, domain, ciphertext, nonce, updated_at
		FROM records
		WHERE owner_id = $1 AND domain = $2
		ORDER BY updated_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, domain)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec := &models.Record{}
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Domain, &rec.Ciphertext, &rec.Nonce, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Record, error) {
	query := `
		SELECT id, owner_id, domain, ciphertext, nonce, updated_at
		FROM records
		WHERE owner_id = $1 AND id = $2
	`
	rec := &models.Record{}
	err := r.db.QueryRowContext(ctx, query, ownerID, id).
		Scan(&rec.ID, &rec.OwnerID, &rec.Domain, &rec.Ciphertext, &rec.Nonce, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Upsert stores rec, replacing an existing record with the same id, and
// sets UpdatedAt from the database clock.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) (*models.Record, error) {
	query := `
		INSERT INTO records (owner_id, id, domain, ciphertext, nonce, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (owner_id, id) DO UPDATE
		SET domain = EXCLUDED.domain, ciphertext = EXCLUDED.ciphertext,
		    nonce = EXCLUDED.nonce, updated_at = now()
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, rec.OwnerID, rec.ID, rec.Domain, rec.Ciphertext, rec.Nonce).
		Scan(&rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteDomain(ctx context.Context, ownerID, domain string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE owner_id = $1 AND domain = $2`, ownerID, domain)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/models"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const upsertQuery = `
	INSERT INTO records (id, domain, ciphertext, nonce, updated_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		domain = excluded.domain,
		ciphertext = excluded.ciphertext,
		nonce = excluded.nonce,
		updated_at = excluded.updated_at
`

func (r *SQLiteRepository) Upsert(ctx context.Context, rec models.EncryptedRecord) error {
	return upsert(ctx, r.db, rec)
}

func upsert(ctx context.Context, db dbx.DBTX, rec models.EncryptedRecord) error {
	_, err := db.ExecContext(ctx, upsertQuery,
		rec.ID, rec.Domain.String(), rec.Ciphertext, rec.Nonce, rec.UpdatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// ReplaceDomain runs inside a transaction when r was built over *sql.DB.
func (r *SQLiteRepository) ReplaceDomain(ctx context.Context, domain cryptox.KeyDomain, recs []models.EncryptedRecord) error {
	replace := func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE domain = ?`, domain.String()); err != nil {
			return fmt.Errorf("failed to clear domain %s: %w", domain, err)
		}
		for _, rec := range recs {
			rec.Domain = domain
			if err := upsert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	}

	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, replace)
	}
	return replace(ctx, r.db)
}

func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain cryptox.KeyDomain) ([]models.EncryptedRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, domain, ciphertext, nonce, updated_at FROM records WHERE domain = ? ORDER BY updated_at, id`,
		domain.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var result []models.EncryptedRecord
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (models.EncryptedRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, domain, ciphertext, nonce, updated_at FROM records WHERE id = ?`, id)

	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EncryptedRecord{}, common.ErrorNotFound
	}
	return rec, err
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.EncryptedRecord, error) {
	var (
		rec     models.EncryptedRecord
		domain  string
		updated int64
	)
	if err := s.Scan(&rec.ID, &domain, &rec.Ciphertext, &rec.Nonce, &updated); err != nil {
		return models.EncryptedRecord{}, err
	}
	d, err := cryptox.ParseKeyDomain(domain)
	if err != nil {
		return models.EncryptedRecord{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.Domain = d
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

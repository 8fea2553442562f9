// Package shares stores share ciphertext envelopes. Keys never reach this
// table; only ciphertext, nonce, policy and expiry do.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/jackc/pgx/v5/pgtype"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts s and fills in CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Share) (*models.Share, error) {
	query := `
		INSERT INTO shares (id, creator_id, creator_label, ciphertext, nonce, blob_key,
		                    access_mode, allowed_usernames, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	allowed := s.AllowedUsernames
	if allowed == nil {
		allowed = []string{}
	}
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.CreatorID, s.CreatorLabel, s.Ciphertext, s.Nonce, nullString(s.BlobKey),
		s.AccessMode, allowed, s.ExpiresAt).Scan(&s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Share, error) {
	query := `
		SELECT id, creator_id, creator_label, ciphertext, nonce, blob_key,
		       access_mode, allowed_usernames, created_at, expires_at, purged_at
		FROM shares
		WHERE id = $1
	`
	s := &models.Share{}
	var blobKey sql.NullString
	// pgtype.Map caches per type and is not safe to share between goroutines.
	types := pgtype.NewMap()
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.CreatorID, &s.CreatorLabel, &s.Ciphertext, &s.Nonce, &blobKey,
		&s.AccessMode, types.SQLScanner(&s.AllowedUsernames), &s.CreatedAt, &s.ExpiresAt, &s.PurgedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.BlobKey = blobKey.String
	return s, nil
}

func (r *PostgresRepository) Purge(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE shares
		SET ciphertext = NULL, blob_key = NULL, allowed_usernames = '{}', purged_at = $2
		WHERE id = $1 AND purged_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE shares s
		SET ciphertext = NULL, blob_key = NULL, allowed_usernames = '{}', purged_at = $1
		FROM (
			SELECT id, blob_key FROM shares
			WHERE expires_at <= $1 AND purged_at IS NULL
			FOR UPDATE
		) old
		WHERE s.id = old.id
		RETURNING old.blob_key
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key sql.NullString
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		keys = append(keys, key.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return keys, nil
}

func (r *PostgresRepository) DeleteTombstones(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM shares WHERE purged_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Package users stores accounts: salts, verifiers and recovery token hashes.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts user and fills in CreatedAt. A taken username yields
// common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, username, salt, verifier, recovery_token_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.UserName, user.Salt, user.Verifier, user.RecoveryTokenHash).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const selectUser = `SELECT id, username, salt, verifier, pending_salt, recovery_token_hash,
		 pending_recovery_hash, pending_at, created_at FROM users`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.UserName, &user.Salt, &user.Verifier, &user.PendingSalt,
		&user.RecoveryTokenHash, &user.PendingRecoveryHash, &user.PendingAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, userName))
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

// SetPendingSalt records the salt a secret change will switch to, issued
// at at. A secret change still pending since staleBefore or later holds the
// account and yields common.ErrRotationInProgress, as does an unknown id.
// A pending recovery is abandoned.
func (r *PostgresRepository) SetPendingSalt(ctx context.Context, id string, salt []byte, at, staleBefore time.Time) error {
	err := r.exec(ctx,
		`UPDATE users SET pending_salt = $2, pending_recovery_hash = NULL, pending_at = $3
		 WHERE id = $1 AND (pending_salt IS NULL OR pending_recovery_hash IS NOT NULL
		       OR pending_at IS NULL OR pending_at < $4)`,
		id, salt, at, staleBefore)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrRotationInProgress
	}
	return err
}

// CommitSecret makes salt current if it is the pending one. A salt that
// was never issued yields common.ErrorNotFound.
func (r *PostgresRepository) CommitSecret(ctx context.Context, id string, salt, verifier []byte) error {
	return r.exec(ctx,
		`UPDATE users SET salt = $2, verifier = $3, pending_salt = NULL, pending_at = NULL
		 WHERE id = $1 AND pending_salt = $2 AND pending_recovery_hash IS NULL`,
		id, salt, verifier)
}

// BeginRecovery stages a new salt and recovery token hash. The current
// salt, verifier and recovery token stay valid until CompleteRecovery.
func (r *PostgresRepository) BeginRecovery(ctx context.Context, id string, salt, recoveryHash []byte) error {
	return r.exec(ctx,
		`UPDATE users SET pending_salt = $2, pending_recovery_hash = $3, pending_at = NULL WHERE id = $1`,
		id, salt, recoveryHash)
}

// CompleteRecovery promotes the staged salt and recovery hash, and sets
// verifier. It only matches while salt is still the staged one.
func (r *PostgresRepository) CompleteRecovery(ctx context.Context, id string, salt, verifier []byte) error {
	return r.exec(ctx,
		`UPDATE users SET salt = pending_salt, verifier = $3,
		 recovery_token_hash = pending_recovery_hash,
		 pending_salt = NULL, pending_recovery_hash = NULL, pending_at = NULL
		 WHERE id = $1 AND pending_salt = $2 AND pending_recovery_hash IS NOT NULL`,
		id, salt, verifier)
}

// Package memory keeps every repository in process memory. It backs the
// server when no database is configured and the service tests.
package memory

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/domainsalts"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/records"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/shares"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/users"
)

// Store implements repomanager.RepositoryManager. Its operations follow the
// Postgres statements, including the pending salt conditions. The db handle
// passed to the accessors is ignored.
type Store struct {
	mu      sync.Mutex
	users   map[string]*models.User
	salts   map[string][]byte
	records map[string]*models.Record
	shares  map[string]*models.Share
}

var _ repomanager.RepositoryManager = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   map[string]*models.User{},
		salts:   map[string][]byte{},
		records: map[string]*models.Record{},
		shares:  map[string]*models.Share{},
	}
}

func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

// WithTx runs fn directly. Steps already applied are not undone when a
// later one fails.
func (s *Store) WithTx(ctx context.Context, _ *sql.DB, fn dbx.TxFunc) error {
	return fn(ctx, nil)
}

func (s *Store) Users(dbx.DBTX) users.Repository             { return userRepo{s} }
func (s *Store) DomainSalts(dbx.DBTX) domainsalts.Repository { return saltRepo{s} }
func (s *Store) Records(dbx.DBTX) records.Repository         { return recordRepo{s} }
func (s *Store) Shares(dbx.DBTX) shares.Repository           { return shareRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	c := *u
	r.s.users[u.ID] = &c
	return u, nil
}

func (r userRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.UserName == login {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r userRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r userRepo) update(id string, fn func(u *models.User) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || !fn(u) {
		return common.ErrorNotFound
	}
	return nil
}

func (r userRepo) SetPendingSalt(_ context.Context, id string, salt []byte, at, staleBefore time.Time) error {
	err := r.update(id, func(u *models.User) bool {
		held := u.PendingSalt != nil && u.PendingRecoveryHash == nil &&
			u.PendingAt != nil && !u.PendingAt.Before(staleBefore)
		if held {
			return false
		}
		u.PendingSalt, u.PendingRecoveryHash, u.PendingAt = salt, nil, &at
		return true
	})
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrRotationInProgress
	}
	return err
}

func (r userRepo) CommitSecret(_ context.Context, id string, salt, verifier []byte) error {
	return r.update(id, func(u *models.User) bool {
		if u.PendingSalt == nil || !bytes.Equal(u.PendingSalt, salt) || u.PendingRecoveryHash != nil {
			return false
		}
		u.Salt, u.Verifier, u.PendingSalt, u.PendingAt = salt, verifier, nil, nil
		return true
	})
}

func (r userRepo) BeginRecovery(_ context.Context, id string, salt, recoveryHash []byte) error {
	return r.update(id, func(u *models.User) bool {
		u.PendingSalt, u.PendingRecoveryHash, u.PendingAt = salt, recoveryHash, nil
		return true
	})
}

func (r userRepo) CompleteRecovery(_ context.Context, id string, salt, verifier []byte) error {
	return r.update(id, func(u *models.User) bool {
		if u.PendingSalt == nil || !bytes.Equal(u.PendingSalt, salt) || u.PendingRecoveryHash == nil {
			return false
		}
		u.Salt, u.Verifier, u.RecoveryTokenHash = u.PendingSalt, verifier, u.PendingRecoveryHash
		u.PendingSalt, u.PendingRecoveryHash, u.PendingAt = nil, nil, nil
		return true
	})
}

type saltRepo struct{ s *Store }

func (r saltRepo) GetOrCreate(_ context.Context, domain string, candidate []byte) ([]byte, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s, ok := r.s.salts[domain]; ok {
		return s, nil
	}
	r.s.salts[domain] = candidate
	return candidate, nil
}

type recordRepo struct{ s *Store }

func recordKey(owner, id string) string { return owner + "\x00" + id }

func (r recordRepo) List(_ context.Context, ownerID, domain string) ([]*models.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Record
	for _, rec := range r.s.records {
		if rec.OwnerID == ownerID && rec.Domain == domain {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r recordRepo) Get(_ context.Context, ownerID, id string) (*models.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[recordKey(ownerID, id)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rec
	return &c, nil
}

func (r recordRepo) Upsert(_ context.Context, rec *models.Record) (*models.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec.UpdatedAt = time.Now()
	c := *rec
	r.s.records[recordKey(rec.OwnerID, rec.ID)] = &c
	return rec, nil
}

func (r recordRepo) DeleteDomain(_ context.Context, ownerID, domain string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, rec := range r.s.records {
		if rec.OwnerID == ownerID && rec.Domain == domain {
			delete(r.s.records, k)
			n++
		}
	}
	return n, nil
}

func (r recordRepo) Delete(_ context.Context, ownerID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := recordKey(ownerID, id)
	if _, ok := r.s.records[k]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.records, k)
	return nil
}

type shareRepo struct{ s *Store }

func (r shareRepo) Create(_ context.Context, s *models.Share) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s.CreatedAt = time.Now()
	c := *s
	r.s.shares[s.ID] = &c
	return s, nil
}

func (r shareRepo) Get(_ context.Context, id string) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.shares[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	return &c, nil
}

func tombstone(s *models.Share, now time.Time) {
	s.Ciphertext, s.BlobKey, s.AllowedUsernames = nil, "", nil
	s.PurgedAt = &now
}

func (r shareRepo) Purge(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s, ok := r.s.shares[id]; ok && s.PurgedAt == nil {
		tombstone(s, now)
	}
	return nil
}

func (r shareRepo) PurgeExpired(_ context.Context, now time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var keys []string
	for _, s := range r.s.shares {
		if s.PurgedAt == nil && !now.Before(s.ExpiresAt) {
			keys = append(keys, s.BlobKey)
			tombstone(s, now)
		}
	}
	return keys, nil
}

func (r shareRepo) DeleteTombstones(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, s := range r.s.shares {
		if s.PurgedAt != nil && s.ExpiresAt.Before(before) {
			delete(r.s.shares, id)
			n++
		}
	}
	return n, nil
}

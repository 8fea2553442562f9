package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/sekure/internal/dbx"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/memory"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/shares"
	"github.com/dmitrijs2005/sekure/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeStore is the in-memory store with switchable failures.
type fakeStore struct {
	*memory.Store

	failUsers    error
	failShares   error
	sharesStored int
}

func newFakeStore() *fakeStore {
	return &fakeStore{Store: memory.New()}
}

func (f *fakeStore) Users(db dbx.DBTX) users.Repository {
	return failingUsers{Repository: f.Store.Users(db), f: f}
}

func (f *fakeStore) Shares(db dbx.DBTX) shares.Repository {
	return failingShares{Repository: f.Store.Shares(db), f: f}
}

func (f *fakeStore) byName(name string) *models.User {
	u, err := f.Store.Users(nil).GetUserByLogin(context.Background(), name)
	if err != nil {
		return nil
	}
	return u
}

func (f *fakeStore) share(t *testing.T, id string) (*models.Share, error) {
	t.Helper()
	return f.Store.Shares(nil).Get(context.Background(), id)
}

func (f *fakeStore) mustShare(t *testing.T, id string) *models.Share {
	t.Helper()
	s, err := f.share(t, id)
	require.NoError(t, err)
	return s
}

type failingUsers struct {
	users.Repository
	f *fakeStore
}

func (r failingUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if r.f.failUsers != nil {
		return nil, r.f.failUsers
	}
	return r.Repository.Create(ctx, u)
}

func (r failingUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	if r.f.failUsers != nil {
		return nil, r.f.failUsers
	}
	return r.Repository.GetUserByLogin(ctx, login)
}

func (r failingUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if r.f.failUsers != nil {
		return nil, r.f.failUsers
	}
	return r.Repository.GetUserByID(ctx, id)
}

func (r failingUsers) SetPendingSalt(ctx context.Context, id string, salt []byte, at, staleBefore time.Time) error {
	if r.f.failUsers != nil {
		return r.f.failUsers
	}
	return r.Repository.SetPendingSalt(ctx, id, salt, at, staleBefore)
}

func (r failingUsers) CommitSecret(ctx context.Context, id string, salt, verifier []byte) error {
	if r.f.failUsers != nil {
		return r.f.failUsers
	}
	return r.Repository.CommitSecret(ctx, id, salt, verifier)
}

func (r failingUsers) CompleteRecovery(ctx context.Context, id string, salt, verifier []byte) error {
	if r.f.failUsers != nil {
		return r.f.failUsers
	}
	return r.Repository.CompleteRecovery(ctx, id, salt, verifier)
}

type failingShares struct {
	shares.Repository
	f *fakeStore
}

func (r failingShares) Create(ctx context.Context, s *models.Share) (*models.Share, error) {
	if r.f.failShares != nil {
		return nil, r.f.failShares
	}
	r.f.sharesStored++
	return r.Repository.Create(ctx, s)
}

func (r failingShares) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	if r.f.failShares != nil {
		return nil, r.f.failShares
	}
	return r.Repository.PurgeExpired(ctx, now)
}

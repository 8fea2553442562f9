package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/logging"
	"github.com/dmitrijs2005/sekure/internal/server/blobstore"
	"github.com/dmitrijs2005/sekure/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBlobs struct {
	*blobstore.MemoryStore
	putErr error
}

func (f *failingBlobs) Put(ctx context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, key, data)
}

func newShareService(store *fakeStore, blobs blobstore.Store) *ShareService {
	return NewShareService(nil, store, blobs, testConfig(), logging.Nop())
}

func anyoneShare(ttl time.Duration) NewShare {
	return NewShare{
		Ciphertext: filled(4, 48),
		Nonce:      filled(5, 12),
		TTL:        ttl,
		AccessMode: models.AccessAnyone,
	}
}

func TestShareService_CreateGet_Inline(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newShareService(store, nil)

	created, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, created.BlobKey)
	assert.WithinDuration(t, time.Now().Add(time.Hour), created.ExpiresAt, time.Minute)

	got, err := svc.Get(ctx, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, filled(4, 48), got.Ciphertext)
	assert.Equal(t, "alice", got.CreatorLabel)
}

func TestShareService_CreateGet_BlobStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	blobs := blobstore.NewMemoryStore()
	svc := newShareService(store, blobs)

	created, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, created.BlobKey)
	assert.Nil(t, store.mustShare(t, created.ID).Ciphertext)
	assert.Equal(t, 1, blobs.Len())

	got, err := svc.Get(ctx, created.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, filled(4, 48), got.Ciphertext)
}

func TestShareService_Create_BlobCleanupOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failShares = errBoom
	blobs := blobstore.NewMemoryStore()
	svc := newShareService(store, blobs)

	_, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Hour))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, blobs.Len())
}

func TestShareService_Create_BlobPutFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newShareService(store, &failingBlobs{MemoryStore: blobstore.NewMemoryStore(), putErr: errBoom})

	_, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Hour))
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, store.sharesStored)
}

func TestShareService_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	svc := newShareService(newFakeStore(), nil)

	tests := []struct {
		name string
		mut  func(*NewShare)
	}{
		{"zero ttl", func(n *NewShare) { n.TTL = 0 }},
		{"ttl above max", func(n *NewShare) { n.TTL = 48 * time.Hour }},
		{"bad nonce", func(n *NewShare) { n.Nonce = filled(1, 3) }},
		{"unknown mode", func(n *NewShare) { n.AccessMode = "friends" }},
		{"usernames with anyone", func(n *NewShare) { n.Usernames = []string{"bob"} }},
		{"users without names", func(n *NewShare) { n.AccessMode = models.AccessUsers }},
		{"bad username", func(n *NewShare) {
			n.AccessMode = models.AccessUsers
			n.Usernames = []string{"a,b"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := anyoneShare(time.Hour)
			tt.mut(&in)
			_, err := svc.Create(ctx, "u1", "alice", in)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestShareService_Get_Policy(t *testing.T) {
	ctx := context.Background()
	svc := newShareService(newFakeStore(), nil)

	in := anyoneShare(time.Hour)
	in.AccessMode = models.AccessUsers
	in.Usernames = []string{"bob"}
	created, err := svc.Create(ctx, "u1", "alice", in)
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID, "bob")
	assert.NoError(t, err)
	_, err = svc.Get(ctx, created.ID, "carol")
	assert.ErrorIs(t, err, common.ErrShareDenied)
	_, err = svc.Get(ctx, created.ID, "")
	assert.ErrorIs(t, err, common.ErrShareDenied)
}

func TestShareService_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := newShareService(newFakeStore(), nil)

	_, err := svc.Get(ctx, "not-a-uuid", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = svc.Get(ctx, "6f1c2a0e-7d7e-4a43-9c55-0d2b7f3f0e11", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestShareService_Get_Expired(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	blobs := blobstore.NewMemoryStore()
	svc := newShareService(store, blobs)

	created, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Minute))
	require.NoError(t, err)

	svc.now = func() time.Time { return created.ExpiresAt }
	_, err = svc.Get(ctx, created.ID, "")
	assert.ErrorIs(t, err, common.ErrShareExpired)
	assert.Equal(t, 0, blobs.Len())

	tomb := store.mustShare(t, created.ID)
	assert.NotNil(t, tomb.PurgedAt)
	assert.False(t, tomb.HasContent())

	// the link keeps answering expired, not unknown
	_, err = svc.Get(ctx, created.ID, "")
	assert.ErrorIs(t, err, common.ErrShareExpired)
}

func TestShareService_Get_AfterPurgeStillExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newShareService(store, nil)

	created, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Minute))
	require.NoError(t, err)

	svc.now = func() time.Time { return created.ExpiresAt.Add(time.Hour) }
	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Get(ctx, created.ID, "")
	assert.ErrorIs(t, err, common.ErrShareExpired)

	svc.now = func() time.Time { return created.ExpiresAt.Add(testConfig().ShareRetention + time.Hour) }
	n, err = svc.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Get(ctx, created.ID, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestShareService_Purge(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	blobs := blobstore.NewMemoryStore()
	svc := newShareService(store, blobs)

	_, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Minute))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", "alice", anyoneShare(time.Minute))
	require.NoError(t, err)
	kept, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Hour))
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, blobs.Len())
	assert.True(t, store.mustShare(t, kept.ID).HasContent())

	n, err = svc.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "tombstones are not purged twice")

	store.failShares = errBoom
	_, err = svc.Purge(ctx)
	assert.ErrorIs(t, err, errBoom)
}

func TestShareService_RunPurger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeStore()
	svc := newShareService(store, nil)

	created, err := svc.Create(ctx, "u1", "alice", anyoneShare(time.Second))
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	done := make(chan struct{})
	go func() {
		svc.RunPurger(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s, err := store.share(t, created.ID)
		return err == nil && s.PurgedAt != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop")
	}
}

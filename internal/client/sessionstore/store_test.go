package sessionstore

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/localdb"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) []byte { return bytes.Repeat([]byte{b}, cryptox.KeySize) }

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := localdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newToken(t *testing.T) SessionToken {
	t.Helper()
	tok, err := NewSessionToken()
	require.NoError(t, err)
	return tok
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, cryptox.Personal())
	require.ErrorIs(t, err, common.ErrKeyUnavailable)

	in := key(1)
	require.NoError(t, s.Put(ctx, cryptox.Personal(), in))
	assert.Equal(t, make([]byte, cryptox.KeySize), in, "Put must wipe the caller's slice")

	require.NoError(t, s.Put(ctx, cryptox.Group("g"), key(2)))

	got, err := s.Get(ctx, cryptox.Personal())
	require.NoError(t, err)
	assert.Equal(t, key(1), got)

	got[0] = 0xff
	again, err := s.Get(ctx, cryptox.Personal())
	require.NoError(t, err)
	assert.Equal(t, key(1), again, "Get must return a copy")

	require.NoError(t, s.Put(ctx, cryptox.Personal(), key(3)))
	got, err = s.Get(ctx, cryptox.Personal())
	require.NoError(t, err)
	assert.Equal(t, key(3), got)

	require.NoError(t, s.Delete(ctx, cryptox.Group("g")))
	_, err = s.Get(ctx, cryptox.Group("g"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx, cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	assert.ErrorIs(t, s.Put(ctx, cryptox.Personal(), nil), common.ErrInvalidInput)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_DestroysBuffers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, cryptox.Personal(), key(1)))
	first := s.bufs[cryptox.Personal()]
	require.NoError(t, s.Put(ctx, cryptox.Personal(), key(2)))
	assert.False(t, first.IsAlive(), "replaced key must be destroyed")

	require.NoError(t, s.Put(ctx, cryptox.Group("g"), key(3)))
	group := s.bufs[cryptox.Group("g")]
	require.NoError(t, s.Delete(ctx, cryptox.Group("g")))
	assert.False(t, group.IsAlive())

	personal := s.bufs[cryptox.Personal()]
	require.NoError(t, s.Clear(ctx))
	assert.False(t, personal.IsAlive())
	assert.Zero(t, s.Len())
}

func TestForgetAll(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	a, err := NewSQLiteStore(ctx, db, newToken(t), time.Hour)
	require.NoError(t, err)
	b, err := NewSQLiteStore(ctx, db, newToken(t), time.Hour)
	require.NoError(t, err)
	require.NoError(t, a.Put(ctx, cryptox.Personal(), key(1)))
	require.NoError(t, b.Put(ctx, cryptox.Group("g"), key(2)))

	require.NoError(t, ForgetAll(ctx, db))

	_, err = a.Get(ctx, cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
	_, err = b.Get(ctx, cryptox.Group("g"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), openDB(t), newToken(t), time.Hour)
	require.NoError(t, err)
	storeContract(t, s)
}

func TestLayered(t *testing.T) {
	slow, err := NewSQLiteStore(context.Background(), openDB(t), newToken(t), time.Hour)
	require.NoError(t, err)
	storeContract(t, Layered{Fast: NewMemoryStore(), Slow: slow})
}

func TestSQLiteStore_ResumeWithSameToken(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	tok := newToken(t)

	first, err := NewSQLiteStore(ctx, db, tok, time.Hour)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, cryptox.Personal(), key(7)))

	parsed, err := ParseSessionToken(tok.Encode())
	require.NoError(t, err)

	second, err := NewSQLiteStore(ctx, db, parsed, time.Hour)
	require.NoError(t, err)
	got, err := second.Get(ctx, cryptox.Personal())
	require.NoError(t, err)
	assert.Equal(t, key(7), got)
}

func TestSQLiteStore_OtherSessionSeesNothing(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	tok := newToken(t)

	first, err := NewSQLiteStore(ctx, db, tok, time.Hour)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, cryptox.Personal(), key(7)))

	other, err := NewSQLiteStore(ctx, db, newToken(t), time.Hour)
	require.NoError(t, err)
	_, err = other.Get(ctx, cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	// Same id, wrong secret: the row exists but does not unwrap.
	forged := SessionToken{ID: tok.ID, Secret: newToken(t).Secret}
	thief, err := NewSQLiteStore(ctx, db, forged, time.Hour)
	require.NoError(t, err)
	_, err = thief.Get(ctx, cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSQLiteStore_DomainSwapDetected(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s, err := NewSQLiteStore(ctx, db, newToken(t), time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, cryptox.Group("a"), key(1)))

	_, err = db.Exec(`UPDATE session_keys SET domain = 'group:b'`)
	require.NoError(t, err)

	_, err = s.Get(ctx, cryptox.Group("b"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestSQLiteStore_Expiry(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s, err := NewSQLiteStore(ctx, db, newToken(t), time.Minute)
	require.NoError(t, err)

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Put(ctx, cryptox.Personal(), key(1)))

	s.now = func() time.Time { return now.Add(30 * time.Second) }
	require.NoError(t, s.Touch(ctx))

	s.now = func() time.Time { return now.Add(80 * time.Second) }
	_, err = s.Get(ctx, cryptox.Personal())
	require.NoError(t, err, "Touch should have extended the session")

	s.now = func() time.Time { return now.Add(5 * time.Minute) }
	_, err = s.Get(ctx, cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session_keys`).Scan(&n))
	assert.Zero(t, n, "expired row is dropped on read")
}

func TestSQLiteStore_PurgeOnOpen(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	_, err := db.Exec(`INSERT INTO session_keys VALUES ('old', 'personal', x'00', x'00', 1)`)
	require.NoError(t, err)

	_, err = NewSQLiteStore(ctx, db, newToken(t), time.Hour)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session_keys`).Scan(&n))
	assert.Zero(t, n)
}

func TestLayered_FillsFastFromSlow(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	tok := newToken(t)

	slow, err := NewSQLiteStore(ctx, db, tok, time.Hour)
	require.NoError(t, err)
	require.NoError(t, slow.Put(ctx, cryptox.Personal(), key(9)))

	fast := NewMemoryStore()
	l := Layered{Fast: fast, Slow: slow}

	got, err := l.Get(ctx, cryptox.Personal())
	require.NoError(t, err)
	assert.Equal(t, key(9), got)
	assert.Equal(t, 1, fast.Len())
}

func TestParseSessionToken(t *testing.T) {
	tok := newToken(t)
	parsed, err := ParseSessionToken(tok.Encode())
	require.NoError(t, err)
	assert.Equal(t, tok, parsed)

	for _, bad := range []string{"", "nodot", "not-a-uuid.AAAA", tok.ID + ".!!", tok.ID + ".AAAA"} {
		_, err := ParseSessionToken(bad)
		assert.ErrorIs(t, err, common.ErrInvalidInput, bad)
	}
}

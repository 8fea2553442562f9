package keyring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/sekure/internal/client/sessionstore"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedSalt = []byte("sekure-fixed-salt-0123456789abcd")

type mockSalts struct {
	mock.Mock
}

func (m *mockSalts) DomainSalt(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	args := m.Called(ctx, domain)
	salt, _ := args.Get(0).([]byte)
	return salt, args.Error(1)
}

// countingDerive is a cheap stand-in for the KDF that blocks until release
// is closed, so concurrent callers pile up behind it.
type countingDerive struct {
	calls   atomic.Int32
	release chan struct{}
}

func (c *countingDerive) derive(domain cryptox.KeyDomain, salt []byte) (cryptox.DerivedKey, error) {
	c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	raw := make([]byte, cryptox.KeySize)
	copy(raw, salt)
	raw[0] = byte(domain.Kind)
	return cryptox.NewDerivedKey(domain, raw)
}

func TestGetKey_SingleFlightOnColdDomain(t *testing.T) {
	salts := &mockSalts{}
	salts.On("DomainSalt", mock.Anything, cryptox.Group("team")).Return(fixedSalt, nil).Once()

	cd := &countingDerive{release: make(chan struct{})}
	m := New(sessionstore.NewMemoryStore(), salts, WithDeriveFunc(cd.derive))

	const callers = 8
	var wg sync.WaitGroup
	keys := make([]cryptox.DerivedKey, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = m.GetKey(context.Background(), cryptox.Group("team"))
		}(i)
	}

	require.Eventually(t, func() bool { return cd.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Let stragglers reach the single-flight barrier before releasing.
	time.Sleep(20 * time.Millisecond)
	close(cd.release)
	wg.Wait()

	assert.Equal(t, int32(1), cd.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, keys[0].Equal(keys[i]))
	}
	salts.AssertExpectations(t)
}

// gatedSalts holds every salt request until release is closed and then
// fails the way a real transport would on a cancelled context.
type gatedSalts struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSalts) DomainSalt(ctx context.Context, _ cryptox.KeyDomain) ([]byte, error) {
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fixedSalt, nil
}

func TestGetKey_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	salts := &gatedSalts{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := New(sessionstore.NewMemoryStore(), salts, WithDeriveFunc((&countingDerive{}).derive))

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.GetKey(firstCtx, cryptox.Group("team"))
		firstErr <- err
	}()
	<-salts.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := m.GetKey(context.Background(), cryptox.Group("team"))
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(salts.release)
	require.NoError(t, <-secondErr)

	_, err := m.GetKey(context.Background(), cryptox.Group("team"))
	assert.NoError(t, err, "the shared derivation filled the cache")
}

func TestGetKey_TwoConcurrentPersonalCallsDeriveOnce(t *testing.T) {
	m := New(sessionstore.NewMemoryStore(), &mockSalts{})

	cd := &countingDerive{release: make(chan struct{})}
	m.ArmPersonal(func() (cryptox.DerivedKey, error) {
		return cd.derive(cryptox.Personal(), fixedSalt)
	})

	var wg sync.WaitGroup
	keys := make([]cryptox.DerivedKey, 2)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := m.GetKey(context.Background(), cryptox.Personal())
			assert.NoError(t, err)
			keys[i] = k
		}(i)
	}

	require.Eventually(t, func() bool { return cd.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(cd.release)
	wg.Wait()

	assert.Equal(t, int32(1), cd.calls.Load())
	assert.True(t, keys[0].Equal(keys[1]))
	assert.True(t, keys[0].Domain().IsPersonal())
}

func TestGetKey_PersonalDeriverIsOneShot(t *testing.T) {
	m := New(sessionstore.NewMemoryStore(), &mockSalts{})
	ctx := context.Background()
	cd := &countingDerive{}
	m.ArmPersonal(func() (cryptox.DerivedKey, error) {
		return cd.derive(cryptox.Personal(), fixedSalt)
	})

	_, err := m.GetKey(ctx, cryptox.Personal())
	require.NoError(t, err)

	require.NoError(t, m.Clear(ctx))
	_, err = m.GetKey(ctx, cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
	assert.Equal(t, int32(1), cd.calls.Load())
}

func TestGetKey_PutPersonalIsServedFromCache(t *testing.T) {
	m := New(sessionstore.NewMemoryStore(), &mockSalts{})

	k, err := cryptox.NewDerivedKey(cryptox.Personal(), fixedSalt)
	require.NoError(t, err)
	require.NoError(t, m.Put(context.Background(), k))

	got, err := m.GetKey(context.Background(), cryptox.Personal())
	require.NoError(t, err)
	assert.True(t, k.Equal(got))
}

func TestGetKey_CachedAfterFirstDerivation(t *testing.T) {
	salts := &mockSalts{}
	salts.On("DomainSalt", mock.Anything, cryptox.ChildAccount("kid")).Return(fixedSalt, nil).Once()
	cd := &countingDerive{}
	m := New(sessionstore.NewMemoryStore(), salts, WithDeriveFunc(cd.derive))

	k1, err := m.GetKey(context.Background(), cryptox.ChildAccount("kid"))
	require.NoError(t, err)
	k2, err := m.GetKey(context.Background(), cryptox.ChildAccount("kid"))
	require.NoError(t, err)

	assert.True(t, k1.Equal(k2))
	assert.Equal(t, cryptox.ChildAccount("kid"), k2.Domain())
	assert.Equal(t, int32(1), cd.calls.Load())
	salts.AssertExpectations(t)
}

func TestGetKey_UnarmedPersonalAndShareMissAreUnavailable(t *testing.T) {
	salts := &mockSalts{}
	m := New(sessionstore.NewMemoryStore(), salts)

	_, err := m.GetKey(context.Background(), cryptox.Personal())
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	_, err = m.GetKey(context.Background(), cryptox.ShareLink("s1"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	salts.AssertNotCalled(t, "DomainSalt", mock.Anything, mock.Anything)
}

func TestGetKey_NetworkFailureLeavesCacheUntouched(t *testing.T) {
	salts := &mockSalts{}
	salts.On("DomainSalt", mock.Anything, cryptox.Group("g")).
		Return(nil, common.ErrNetworkFailure).Once()
	salts.On("DomainSalt", mock.Anything, cryptox.Group("g")).
		Return(fixedSalt, nil).Once()

	store := sessionstore.NewMemoryStore()
	m := New(store, salts, WithDeriveFunc((&countingDerive{}).derive))

	_, err := m.GetKey(context.Background(), cryptox.Group("g"))
	require.ErrorIs(t, err, common.ErrNetworkFailure)
	assert.Zero(t, store.Len())

	_, err = m.GetKey(context.Background(), cryptox.Group("g"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestGetKey_RealDerivation(t *testing.T) {
	orig := cryptox.Iterations
	cryptox.Iterations = 1000
	t.Cleanup(func() { cryptox.Iterations = orig })

	salts := &mockSalts{}
	salts.On("DomainSalt", mock.Anything, cryptox.Group("team-42")).Return(fixedSalt, nil)
	m := New(sessionstore.NewMemoryStore(), salts)

	got, err := m.GetKey(context.Background(), cryptox.Group("team-42"))
	require.NoError(t, err)

	want, err := cryptox.DeriveDomainKey(cryptox.Group("team-42"), fixedSalt)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestInvalidateAndClear(t *testing.T) {
	salts := &mockSalts{}
	salts.On("DomainSalt", mock.Anything, mock.Anything).Return(fixedSalt, nil)
	cd := &countingDerive{}
	store := sessionstore.NewMemoryStore()
	m := New(store, salts, WithDeriveFunc(cd.derive))
	ctx := context.Background()

	_, err := m.GetKey(ctx, cryptox.Group("a"))
	require.NoError(t, err)
	_, err = m.GetKey(ctx, cryptox.Group("b"))
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ctx, cryptox.Group("a")))
	_, err = m.GetKey(ctx, cryptox.Group("a"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), cd.calls.Load())

	require.NoError(t, m.Clear(ctx))
	assert.Zero(t, store.Len())
}

func TestGetKey_InvalidDomain(t *testing.T) {
	m := New(sessionstore.NewMemoryStore(), &mockSalts{})
	_, err := m.GetKey(context.Background(), cryptox.Group(""))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestPut_RejectsZeroKey(t *testing.T) {
	m := New(sessionstore.NewMemoryStore(), &mockSalts{})
	err := m.Put(context.Background(), cryptox.DerivedKey{})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

// Package keyring resolves the key of a trust domain for the current session.
//
// A Manager reads through its session store. On a miss for a Group or
// ChildAccount domain it fetches the domain's salt and runs the slow KDF; a
// personal miss runs the deriver armed at login. Concurrent misses for the
// same domain share one fetch and one derivation.
package keyring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/sekure/internal/client/sessionstore"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
	"github.com/dmitrijs2005/sekure/internal/logging"
	"golang.org/x/sync/singleflight"
)

// SaltSource returns the salt of a non-personal domain from the backing
// store.
type SaltSource interface {
	DomainSalt(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error)
}

// DeriveFunc derives a domain key from its salt.
type DeriveFunc func(domain cryptox.KeyDomain, salt []byte) (cryptox.DerivedKey, error)

type Option func(*Manager)

// WithDeriveFunc replaces cryptox.DeriveDomainKey; tests count calls with it.
func WithDeriveFunc(f DeriveFunc) Option { return func(m *Manager) { m.derive = f } }

func WithLogger(l logging.Logger) Option { return func(m *Manager) { m.logger = l } }

// PersonalDeriver derives the personal key from a master secret it holds.
// It is called at most once.
type PersonalDeriver func() (cryptox.DerivedKey, error)

type Manager struct {
	store  sessionstore.Store
	salts  SaltSource
	derive DeriveFunc
	group  singleflight.Group
	logger logging.Logger

	mu       sync.Mutex
	personal PersonalDeriver
}

func New(store sessionstore.Store, salts SaltSource, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		salts:  salts,
		derive: cryptox.DeriveDomainKey,
		logger: logging.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ArmPersonal installs a one-shot deriver for the personal key. The next
// personal cache miss consumes it; later misses report ErrKeyUnavailable
// until the user authenticates again.
func (m *Manager) ArmPersonal(d PersonalDeriver) {
	m.mu.Lock()
	m.personal = d
	m.mu.Unlock()
}

func (m *Manager) takePersonal() PersonalDeriver {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.personal
	m.personal = nil
	return d
}

// GetKey returns the key for domain. A ShareLink miss, and a personal miss
// with no armed deriver, is common.ErrKeyUnavailable.
func (m *Manager) GetKey(ctx context.Context, domain cryptox.KeyDomain) (cryptox.DerivedKey, error) {
	if err := domain.Validate(); err != nil {
		return cryptox.DerivedKey{}, err
	}

	key, err := m.cached(ctx, domain)
	if err == nil || !errors.Is(err, common.ErrKeyUnavailable) {
		return key, err
	}

	if domain.Kind == cryptox.KindShareLink {
		return cryptox.DerivedKey{}, err
	}

	// The derivation is shared, so it must not die with whichever caller
	// started it; each caller still stops waiting on its own ctx.
	ch := m.group.DoChan(domain.String(), func() (any, error) {
		return m.resolve(context.WithoutCancel(ctx), domain)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return cryptox.DerivedKey{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return cryptox.DerivedKey{}, res.Err
	}
	if res.Shared {
		m.logger.Debug(ctx, "joined in-flight key derivation", "domain", domain.String())
	}

	raw := res.Val.([]byte)
	return cryptox.NewDerivedKey(domain, raw)
}

func (m *Manager) cached(ctx context.Context, domain cryptox.KeyDomain) (cryptox.DerivedKey, error) {
	raw, err := m.store.Get(ctx, domain)
	if err != nil {
		return cryptox.DerivedKey{}, err
	}
	defer common.WipeByteArray(raw)
	return cryptox.NewDerivedKey(domain, raw)
}

// resolve runs once per cold domain no matter how many callers wait on it.
// It returns the raw key; each waiter wraps its own DerivedKey copy.
func (m *Manager) resolve(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	// A caller that finished just before us may have filled the store.
	if key, err := m.cached(ctx, domain); err == nil {
		return key.Export(), nil
	}

	var (
		key cryptox.DerivedKey
		err error
	)
	if domain.IsPersonal() {
		key, err = m.derivePersonal()
	} else {
		key, err = m.deriveDomain(ctx, domain)
	}
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	if err := m.store.Put(ctx, domain, key.Export()); err != nil {
		return nil, fmt.Errorf("cache %s: %w", domain, err)
	}
	m.logger.Debug(ctx, "derived domain key", "domain", domain.String())
	return key.Export(), nil
}

func (m *Manager) derivePersonal() (cryptox.DerivedKey, error) {
	d := m.takePersonal()
	if d == nil {
		return cryptox.DerivedKey{}, fmt.Errorf("%w: %s", common.ErrKeyUnavailable, cryptox.Personal())
	}
	key, err := d()
	if err != nil {
		return cryptox.DerivedKey{}, fmt.Errorf("derive personal: %w", err)
	}
	if !key.Domain().IsPersonal() {
		return cryptox.DerivedKey{}, fmt.Errorf("%w: deriver returned a %s key", common.ErrInvalidInput, key.Domain())
	}
	return key, nil
}

func (m *Manager) deriveDomain(ctx context.Context, domain cryptox.KeyDomain) (cryptox.DerivedKey, error) {
	salt, err := m.salts.DomainSalt(ctx, domain)
	if err != nil {
		return cryptox.DerivedKey{}, fmt.Errorf("salt for %s: %w", domain, err)
	}
	key, err := m.derive(domain, salt)
	if err != nil {
		return cryptox.DerivedKey{}, fmt.Errorf("derive %s: %w", domain, err)
	}
	return key, nil
}

// Put caches key under its own domain, replacing any previous entry. Login
// and rotation use it for the personal key.
func (m *Manager) Put(ctx context.Context, key cryptox.DerivedKey) error {
	if key.IsZero() {
		return fmt.Errorf("%w: empty key", common.ErrInvalidInput)
	}
	return m.store.Put(ctx, key.Domain(), key.Export())
}

// Invalidate drops one cached domain key.
func (m *Manager) Invalidate(ctx context.Context, domain cryptox.KeyDomain) error {
	m.group.Forget(domain.String())
	return m.store.Delete(ctx, domain)
}

// Clear drops every cached key and any armed deriver. Called on lock and
// logout.
func (m *Manager) Clear(ctx context.Context) error {
	m.takePersonal()
	return m.store.Clear(ctx)
}

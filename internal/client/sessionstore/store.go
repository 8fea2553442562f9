// Package sessionstore holds exported domain keys for the lifetime of a
// session. Nothing here outlives the session: the in-memory store dies with
// the process, and the SQLite store can only be unwrapped with a token that
// lives in the user's shell environment.
package sessionstore

import (
	"context"

	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// Store maps a key domain to exported key bytes. Put takes ownership of the
// slice and wipes it. Get returns a fresh copy, or common.ErrKeyUnavailable
// when nothing is stored for the domain.
type Store interface {
	Put(ctx context.Context, domain cryptox.KeyDomain, key []byte) error
	Get(ctx context.Context, domain cryptox.KeyDomain) ([]byte, error)
	Delete(ctx context.Context, domain cryptox.KeyDomain) error
	Clear(ctx context.Context) error
}

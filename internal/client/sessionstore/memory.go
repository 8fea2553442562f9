package sessionstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/cryptox"
)

// MemoryStore keeps each key in a frozen memguard buffer: locked out of
// swap, fenced by guard pages and read-only. Delete, Clear and a Put over an
// existing domain destroy the buffer, which wipes it before release.
type MemoryStore struct {
	mu   sync.RWMutex
	bufs map[cryptox.KeyDomain]*memguard.LockedBuffer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bufs: make(map[cryptox.KeyDomain]*memguard.LockedBuffer)}
}

// Put moves key into a locked buffer. The caller's slice is wiped.
func (s *MemoryStore) Put(_ context.Context, domain cryptox.KeyDomain, key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key for %s", common.ErrInvalidInput, domain)
	}
	buf := memguard.NewBufferFromBytes(key)
	buf.Freeze()

	s.mu.Lock()
	old := s.bufs[domain]
	s.bufs[domain] = buf
	s.mu.Unlock()

	if old != nil {
		old.Destroy()
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, domain cryptox.KeyDomain) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.bufs[domain]
	if !ok || !buf.IsAlive() {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyUnavailable, domain)
	}
	out := make([]byte, buf.Size())
	copy(out, buf.Bytes())
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, domain cryptox.KeyDomain) error {
	s.mu.Lock()
	buf := s.bufs[domain]
	delete(s.bufs, domain)
	s.mu.Unlock()

	if buf != nil {
		buf.Destroy()
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	old := s.bufs
	s.bufs = make(map[cryptox.KeyDomain]*memguard.LockedBuffer)
	s.mu.Unlock()

	for _, buf := range old {
		buf.Destroy()
	}
	return nil
}

// Len reports how many domains currently have a key.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bufs)
}

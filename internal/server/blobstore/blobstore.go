// Package blobstore keeps share ciphertext outside the database. Blobs are
// opaque; the store never learns what they decrypt to.
package blobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/google/uuid"
)

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key for a share's ciphertext.
func NewKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("shares/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append([]byte(nil), b...), nil
}

// Delete is idempotent.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// Len reports how many blobs are held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

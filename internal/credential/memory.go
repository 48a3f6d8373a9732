package credential

import (
	"bytes"
	"context"
	"sync"

	"github.com/habat-tech/todrive/internal/model"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	record       *model.CredentialRecord
	clientConfig []byte

	// Saves counts successful Save calls.
	Saves int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*model.CredentialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !usable(m.record) {
		return nil, nil
	}
	rec := *m.record
	return &rec, nil
}

func (m *MemoryStore) Save(_ context.Context, rec *model.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.record = &cp
	m.Saves++
	return nil
}

func (m *MemoryStore) PutClientConfig(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientConfig = bytes.Clone(data)
	return nil
}

func (m *MemoryStore) ClientConfig(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.clientConfig == nil {
		return nil, ErrNoClientConfig
	}
	return bytes.Clone(m.clientConfig), nil
}

package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/habat-tech/todrive/internal/model"
)

// MemoryLocker implements Locker in process memory. It serializes callers
// within one process only.
type MemoryLocker struct {
	leases      map[string]*model.Lease
	mu          sync.Mutex
	ttlDuration time.Duration
}

// NewMemoryLocker creates a new MemoryLocker, with DefaultTTL unless
// WithTTL says otherwise.
func NewMemoryLocker(opts ...Option) *MemoryLocker {
	o := applyOptions(opts)
	return &MemoryLocker{
		leases:      make(map[string]*model.Lease),
		ttlDuration: o.ttl,
	}
}

func (m *MemoryLocker) Acquire(_ context.Context, key, owner string) (*model.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().Unix()
	if existing, ok := m.leases[key]; ok {
		if existing.ExpiresAt > now && existing.Owner != owner {
			return nil, ErrHeld
		}
	}

	l := &model.Lease{
		Key:       key,
		Owner:     owner,
		ExpiresAt: now + int64(m.ttlDuration.Seconds()),
	}
	m.leases[key] = l
	cp := *l
	return &cp, nil
}

func (m *MemoryLocker) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.leases[key]
	if !ok {
		return nil
	}
	if existing.Owner != owner {
		return fmt.Errorf("release %q: %w", key, ErrHeld)
	}
	delete(m.leases, key)
	return nil
}

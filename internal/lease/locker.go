// Package lease provides short-lived exclusive leases used to serialize the
// credential lifecycle across concurrent invocations.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habat-tech/todrive/internal/model"
)

// DefaultTTL bounds how long a crashed holder can block others.
const DefaultTTL = 5 * time.Minute

// holdMargin covers the token exchange, account lookup and save that follow
// a consent wait while the lease is held.
const holdMargin = 2 * time.Minute

// TTLFor returns a lease TTL that outlasts a consent wait of authTimeout.
func TTLFor(authTimeout time.Duration) time.Duration {
	if ttl := authTimeout + holdMargin; ttl > DefaultTTL {
		return ttl
	}
	return DefaultTTL
}

// Option adjusts a Locker implementation.
type Option func(*options)

type options struct {
	ttl time.Duration
}

// WithTTL sets how long an acquired lease stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func applyOptions(opts []Option) options {
	o := options{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ErrHeld is returned when another owner holds an unexpired lease on the key.
var ErrHeld = errors.New("lease is held by another owner")

// Locker defines the interface for lease management.
type Locker interface {
	// Acquire claims key for owner. It succeeds when no lease exists, the
	// existing lease has expired, or owner already holds it.
	Acquire(ctx context.Context, key, owner string) (*model.Lease, error)

	// Release removes the lease if owner holds it.
	Release(ctx context.Context, key, owner string) error
}

// Wait polls Acquire every interval until the lease is obtained, a non-ErrHeld
// error occurs, or ctx is done. The returned func releases the lease.
func Wait(ctx context.Context, l Locker, key, owner string, interval time.Duration) (func(context.Context) error, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, err := l.Acquire(ctx, key, owner)
		if err == nil {
			return func(ctx context.Context) error { return l.Release(ctx, key, owner) }, nil
		}
		if !errors.Is(err, ErrHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lease %q: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Package lock provides per-key mutual exclusion with bounded lifetime.
// It is the only correctness-relevant serialization primitive in
// the system: every mutating auction operation runs under
// KeyedLock(auctionID).
package lock

import (
	"context"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
)

// Options controls a single WithLock attempt.
type Options struct {
	Timeout     time.Duration // lease lifetime once acquired
	MaxRetries  int           // additional attempts after the first
	RetryDelay  time.Duration // base delay, escalated linearly per attempt
}

// DefaultOptions returns the production defaults: 500ms timeout, 3 retries,
// 100ms linear backoff.
func DefaultOptions() Options {
	return Options{Timeout: 500 * time.Millisecond, MaxRetries: 3, RetryDelay: 100 * time.Millisecond}
}

// Stats is a snapshot of keyed-lock activity, for observability.
type Stats struct {
	HeldKeys    int
	Acquired    int64
	Contended   int64
	Expired     int64
}

// KeyedLock is the registry interface. The lock is advisory: only
// components that cooperatively call WithLock are mutually excluded.
type KeyedLock interface {
	// WithLock runs fn while holding the lock for key, retrying on
	// contention per opts. Returns apperr with KindContention (code
	// "busy") if the lock could not be acquired within opts.MaxRetries.
	WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error
	IsLocked(key string) bool
	Stats() Stats
}

// CodeBusy is the apperr code surfaced when lock acquisition exhausts
// its retries.
const CodeBusy = "busy"

func busyErr(key string) error {
	return apperr.Contention(CodeBusy, "lock busy for key "+key)
}

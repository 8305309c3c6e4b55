/*
Package lock serializes mutations on a shared target.

PURPOSE:
  Vote and acceptance transitions are read-modify-write sequences over a
  question or answer record. Two concurrent votes on the same target
  must not interleave, or the cached up/down counters drift from the
  voter set. Every such mutation takes an advisory lock keyed by the
  owning question before reading; answers are guarded by their
  question's key so votes, acceptance, and deletion all contend.

IMPLEMENTATIONS:
  - Keyed: in-process mutex per key (single node, tests)
  - Redis: SetNX token lock with TTL (redis.go, multi-node deployments)
*/
package lock

import (
	"context"
	"sync"
	"time"
)

// ReleaseFunc releases a held lock. Safe to call exactly once.
type ReleaseFunc func()

// Locker acquires an advisory lock for a named resource. Acquire blocks
// until the lock is held, the context is done, or the backend fails.
// The ttl bounds how long a crashed holder can block others; in-process
// implementations may ignore it.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error)
}

// =============================================================================
// KEYED - In-process per-key mutex
// =============================================================================

// Keyed provides one lock per key. Entries are reference-counted and
// dropped when the last waiter leaves, so the map does not grow with
// the number of distinct targets ever locked. A waiter queued behind a
// holder gives up as soon as its context is done.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// keyedEntry holds the lock as a one-slot token channel: sending takes
// the lock, receiving releases it.
type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*keyedEntry)}
}

func (k *Keyed) Acquire(ctx context.Context, name string, _ time.Duration) (ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	e, ok := k.entries[name]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.entries[name] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.leave(name, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { k.leave(name, e, true) })
	}
	return release, nil
}

// leave drops one reference, surrendering the token first if held.
func (k *Keyed) leave(name string, e *keyedEntry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, name)
	}
	k.mu.Unlock()
}

// Package locking serializes mutating operations per trust account. Every
// balance-check-then-mutate sequence runs under the account's lock, so two
// concurrent debits cannot both pass the available-balance check against a
// stale balance. Different accounts proceed in parallel.
package locking

import (
	"context"
	"sync"
)

// Manager hands out exclusive per-key locks.
type Manager interface {
	// Acquire blocks until the key's lock is held or ctx is done. The
	// returned release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process lock manager backed by keyed mutexes. Sufficient
// for single-instance deployments; multi-instance deployments layer the
// redis manager on top.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocal creates a local lock manager.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localLock)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		entry.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine still holds or will hold the mutex; release it once
		// taken so the key does not wedge.
		go func() {
			<-acquired
			l.release(key, entry)
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, entry) })
	}, nil
}

func (l *Local) release(key string, entry *localLock) {
	entry.mu.Unlock()
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

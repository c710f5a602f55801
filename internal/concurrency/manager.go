// Package concurrency serializes operations that share a repository's
// checkout, summary tree, and checkpoint. The summarization and localization
// paths assume no concurrent access per repository; the webhook layer takes
// a repository lock around each unit of work.
package concurrency

import (
	"context"
	"sync"
)

// Manager hands out one lock per key. Key format: "owner/repo".
type Manager struct {
	locks sync.Map // map[string]chan struct{}
}

// NewManager creates a new concurrency manager
func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) lock(key string) chan struct{} {
	// Buffered channel of size 1 (semaphore pattern)
	actual, _ := m.locks.LoadOrStore(key, make(chan struct{}, 1))
	return actual.(chan struct{})
}

// Acquire blocks until the key's lock is held or ctx is done.
func (m *Manager) Acquire(ctx context.Context, key string) error {
	select {
	case m.lock(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases the lock for the given key.
// Safe to call even if the lock was never acquired or already released.
func (m *Manager) Release(key string) {
	if actual, ok := m.locks.Load(key); ok {
		ch := actual.(chan struct{})
		select {
		case <-ch:
		default:
		}
	}
}

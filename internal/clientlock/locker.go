// Package clientlock serializes mutations per client so that full-record
// overwrites issued close together cannot lose each other's changes.
package clientlock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

type slot struct {
	sem     *semaphore.Weighted
	waiters int
}

// Locker is a mutation queue keyed by client id. Callers for the same key run
// one at a time in acquisition order; different keys proceed independently.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Do runs fn while holding the lock for key. Waiting honours ctx; once fn has
// started it is not interrupted by the Locker.
func (l *Locker) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("clientlock.Locker.Do %s: %w", key, err)
	}
	defer s.sem.Release(1)

	return fn(ctx)
}

// Len returns the number of keys with active or waiting callers.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Locker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = s
	}
	s.waiters++
	return s
}

func (l *Locker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}

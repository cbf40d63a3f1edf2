// Package lock provides key-scoped mutual exclusion for wallet units.
//
// Both implementations acquire keys in sorted order, so two callers locking
// overlapping key sets can never deadlock each other.
package lock

import (
	"context"
	"slices"
	"sync"
)

// Local is an in-process keyed mutex. Waiting honours context cancellation.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty in-process locker
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock acquires every key, blocking until all are held or ctx ends.
// The returned release function is safe to call more than once.
func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.acquire(ctx, key); err != nil {
			l.releaseAll(held)
			return nil, err
		}
		held = append(held, key)
	}
	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, s)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *Local) releaseAll(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		s := l.slots[keys[i]]
		<-s.ch
		l.unref(keys[i], s)
	}
}

// unref drops a reference to s; l.mu must be held
func (l *Local) unref(key string, s *slot) {
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// normalize sorts keys and removes duplicates
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

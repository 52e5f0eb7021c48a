package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLocker is an in-process RunLocker used when Redis is not configured.
// It only excludes runs sharing the same instance, not other processes.
// The ttl is ignored; the lock lives until released.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, name string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[name] {
		return nil, fmt.Errorf("local lock %s: %w", name, ErrLocked)
	}
	l.held[name] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, nil
}

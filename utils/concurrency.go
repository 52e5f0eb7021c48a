package utils

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between consecutive requests to the same
// remote source. The first call never waits.
type Pacer struct {
	interval    time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewPacer creates a Pacer with the given minimum interval in milliseconds.
func NewPacer(intervalMs int) *Pacer {
	return &Pacer{interval: time.Duration(intervalMs) * time.Millisecond}
}

// Wait blocks until the interval since the previous request has elapsed,
// or until ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastRequest.IsZero() {
		if remaining := p.interval - time.Since(p.lastRequest); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	p.lastRequest = time.Now()
	return nil
}

// URLSet is a thread-safe set for tracking visited URLs.
type URLSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

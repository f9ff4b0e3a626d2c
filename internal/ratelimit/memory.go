package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps attempt records in a process-local map. Under
// horizontal scaling each instance holds its own budget, so an attacker
// spreading requests across N instances gets N times the attempts before any
// single instance blocks. Deploy the Redis backend when that matters.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

type record struct {
	failures     int
	lastAttempt  time.Time
	blockedUntil time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]*record),
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key Key) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key.String()]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := l.now()

	// The block outlives the tracking window, so check it first.
	if now.Before(rec.blockedUntil) {
		return Decision{RetryAfter: rec.blockedUntil.Sub(now)}, nil
	}

	// A record older than the window is as good as absent; the periodic
	// sweep evicts it.
	return Decision{Allowed: true}, nil
}

func (l *MemoryLimiter) RecordAttempt(_ context.Context, key Key, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.records, key.String())
		return nil
	}

	now := l.now()
	// A stale record restarts tracking from scratch, unless a block is
	// still active; the block is independent of the tracking window.
	rec, ok := l.records[key.String()]
	if !ok || (now.Sub(rec.lastAttempt) > l.cfg.Window && !now.Before(rec.blockedUntil)) {
		rec = &record{}
		l.records[key.String()] = rec
	}
	rec.failures++
	rec.lastAttempt = now

	if rec.failures >= l.cfg.MaxAttempts {
		rec.blockedUntil = now.Add(l.cfg.BlockFor)
	}
	return nil
}

// Sweep drops records idle for longer than the window and no longer blocked.
// Call it periodically; the map otherwise grows with every distinct failed
// identifier.
func (l *MemoryLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, rec := range l.records {
		if now.Sub(rec.lastAttempt) > l.cfg.Window && !now.Before(rec.blockedUntil) {
			delete(l.records, k)
		}
	}
}

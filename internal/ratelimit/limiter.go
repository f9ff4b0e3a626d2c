// Package ratelimit gates login attempts per principal identifier.
//
// Two backends implement the same two-operation contract: an in-process map
// (single instance deployments) and Redis (shared budget across horizontally
// scaled instances). The auth service cannot tell which one is gating it.
package ratelimit

import (
	"context"
	"time"
)

// Key addresses one attempt budget. Identifier is the typed login handle
// when the request carries one, otherwise the caller's address, so that
// requests with no identifier at all still consume a budget.
type Key struct {
	Kind       string
	Identifier string
}

func (k Key) String() string {
	return k.Kind + ":" + k.Identifier
}

// Decision is the outcome of a Check call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the two-operation rate-limit contract.
//
// RecordAttempt must be atomic per key: two concurrent failures must not both
// observe a pre-increment count and slip past the block threshold.
type Limiter interface {
	// Check reports whether an attempt for the key may proceed. It never
	// mutates state.
	Check(ctx context.Context, key Key) (Decision, error)
	// RecordAttempt records the outcome of an attempt. Success wipes the
	// key's record entirely; a single success forgives all prior failures.
	RecordAttempt(ctx context.Context, key Key, success bool) error
}

// Config carries the tunables shared by both backends.
type Config struct {
	// MaxAttempts failures within Window trigger a block.
	MaxAttempts int
	// Window is the sliding window failures are counted in.
	Window time.Duration
	// BlockFor is the fixed block duration. Escalation is binary; there is
	// no exponential backoff.
	BlockFor time.Duration
}

// DefaultConfig matches the deployed behavior: 5 failures in 15 minutes, 30
// minute block.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		BlockFor:    30 * time.Minute,
	}
}

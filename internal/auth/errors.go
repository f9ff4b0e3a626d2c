package auth

import (
	"errors"
	"fmt"
	"time"
)

// The caller-facing error taxonomy. Credential and session failures are
// deliberately generic: unknown identifier and wrong password share one
// error, as do expired, revoked, and unknown tokens.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrWeakPassword       = errors.New("password too short")
)

// RateLimitedError reports an active block and how long it has left.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// WaitSeconds is the value surfaced in responses, rounded up so a caller who
// waits exactly that long is never still blocked.
func (e *RateLimitedError) WaitSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

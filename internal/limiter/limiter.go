// Package limiter throttles callers whose submissions keep failing authorization.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks failed submissions per (caller, ip) and places temporary blocks.
type Limiter interface {
	// Allow reports whether caller may submit and, if not, for how long it stays blocked.
	Allow(ctx context.Context, caller string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after an accepted submission.
	Success(ctx context.Context, caller string, ipHash []byte) error
	// Failure records a rejected submission; may place a temporary block.
	Failure(ctx context.Context, caller string, ipHash []byte) (bool, time.Duration, error)
}

// Policy configures the sliding window and lockout.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Nop never blocks.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error)   { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                        { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) { return false, 0, nil }

package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter for single-node deployments.
type Memory struct {
	mu      sync.Mutex
	policy  Policy
	entries map[string]*entry
	now     func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, entries: map[string]*entry{}, now: time.Now}
}

func memKey(caller string, ipHash []byte) string { return caller + "|" + string(ipHash) }

func (l *Memory) Allow(_ context.Context, caller string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[memKey(caller, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

func (l *Memory) Success(_ context.Context, caller string, ipHash []byte) error {
	l.mu.Lock()
	delete(l.entries, memKey(caller, ipHash))
	l.mu.Unlock()
	return nil
}

func (l *Memory) Failure(_ context.Context, caller string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := memKey(caller, ipHash)
	e, ok := l.entries[k]
	if !ok || now.Sub(e.updatedAt) > l.policy.Window {
		e = &entry{}
		l.entries[k] = e
	}
	e.fails++
	e.updatedAt = now
	if e.fails < l.policy.MaxFails {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(l.policy.BlockFor)
	return true, l.policy.BlockFor, nil
}

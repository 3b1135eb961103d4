package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter with a sliding window and lockout.
type PG struct {
	pool   pgxQuerier
	policy Policy
	now    func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter over any pgx pool or connection.
func NewPG(q pgxQuerier, p Policy) *PG {
	return &PG{pool: q, policy: p, now: time.Now}
}

// Allow reports whether caller is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, caller string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM submit_limiter WHERE caller=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, caller, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if now := l.now(); blockedUntil.After(now) {
			return false, blockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for (caller, ip).
func (l *PG) Success(ctx context.Context, caller string, ipHash []byte) error {
	const q = `
INSERT INTO submit_limiter (caller, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',now())
ON CONFLICT (caller, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := l.pool.Exec(ctx, q, caller, ipHash)
	return err
}

// Failure records a rejected submission; may set a block until a future time.
func (l *PG) Failure(ctx context.Context, caller string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO submit_limiter (caller, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',now())
ON CONFLICT (caller, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - submit_limiter.updated_at > $3::interval THEN 1 ELSE submit_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, caller, ipHash, l.policy.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}
	const upd = `UPDATE submit_limiter SET blocked_until=$3 WHERE caller=$1 AND ip_hash=$2`
	if _, err := l.pool.Exec(ctx, upd, caller, ipHash, l.now().Add(l.policy.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}

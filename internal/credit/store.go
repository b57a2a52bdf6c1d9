package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const exhaustedCacheTTL = 30 * time.Second
const balanceKeyPrefix = "enchanter:credits:"

// StoreLedger implements Ledger against the credit subsystem's PostgreSQL
// table. Reservation is a single guarded UPDATE, so concurrent requests for
// one caller race on the row, not on a stale read. A short-lived Redis marker
// caches exhaustion to spare the database a write attempt per denied request;
// Redis failures fall open to the database, database failures fail closed.
type StoreLedger struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStoreLedger(db *pgxpool.Pool, rdb *redis.Client) *StoreLedger {
	return &StoreLedger{db: db, redis: rdb}
}

func (s *StoreLedger) Reserve(ctx context.Context, callerID string) (bool, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, balanceKeyPrefix+callerID).Result(); err == nil && cached == "exhausted" {
			return false, nil
		}
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE credit_accounts
		SET used = used + 1, last_used_at = NOW()
		WHERE caller_id = $1
		  AND status = 'active'
		  AND balance - used > 0
	`, callerID)
	if err != nil {
		return false, fmt.Errorf("reserve credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if s.redis != nil {
			s.redis.Set(ctx, balanceKeyPrefix+callerID, "exhausted", exhaustedCacheTTL)
		}
		return false, nil
	}
	return true, nil
}

func (s *StoreLedger) Commit(_ context.Context, _ string) error {
	// The row was charged at reservation time.
	return nil
}

func (s *StoreLedger) Release(ctx context.Context, callerID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE credit_accounts
		SET used = used - 1
		WHERE caller_id = $1
		  AND used > 0
	`, callerID)
	if err != nil {
		return fmt.Errorf("release credit: %w", err)
	}

	// Drop any exhaustion marker so the returned credit is visible to the
	// next reservation.
	if s.redis != nil {
		s.redis.Del(ctx, balanceKeyPrefix+callerID)
	}
	return nil
}

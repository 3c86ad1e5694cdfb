package tx

import (
	"context"
	"fmt"

	"github.com/zeebo/xxh3"
)

// LockKey maps a scoped identifier onto a PostgreSQL advisory lock key.
func LockKey(scope, id string) int64 {
	return int64(xxh3.HashString(scope + ":" + id))
}

// AdvisoryLock takes a transaction-scoped advisory lock. It is released on
// commit or rollback, and re-acquiring it inside the same transaction is a no-op.
func AdvisoryLock(ctx context.Context, exec Executor, key int64) error {
	if _, err := exec.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}

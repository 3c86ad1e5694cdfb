package service

import (
	"context"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

// SessionTx serialises mutations of one session. fn must observe either all of
// its writes committed or none. Implementations may wrap a database
// transaction or, in memory, a per-session lock.
type SessionTx interface {
	RunInTx(ctx context.Context, sessionID id.SessionID, fn func(ctx context.Context) error) error
}

// numSessionShards spreads session locks so unrelated sessions rarely contend.
const numSessionShards = 256

// defaultSessionTxTimeout is the maximum duration for a session transaction.
const defaultSessionTxTimeout = 5 * time.Second

// ShardedTx is the in-memory SessionTx. Writes inside fn go straight to the
// in-memory stores, so fn must perform its fallible write first.
type ShardedTx struct {
	shards  [numSessionShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx builds an in-memory SessionTx. A zero timeout uses the default.
func NewShardedTx(timeout time.Duration) *ShardedTx {
	return &ShardedTx{timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, sessionID id.SessionID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultSessionTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &t.shards[xxh3.HashString(sessionID.String())%numSessionShards]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

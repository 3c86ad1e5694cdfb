package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	auditstore "onboard/internal/audit/store"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	txcontext "onboard/pkg/platform/tx"
)

const defaultSessionTxTimeout = 5 * time.Second

// PostgresSessionTx runs a session mutation in one SQL transaction, holding
// the session's advisory lock. Stores join the transaction through the
// context. The audit store takes the same lock key, so it is re-entrant here.
type PostgresSessionTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresSessionTx(db *sql.DB, timeout time.Duration) *PostgresSessionTx {
	return &PostgresSessionTx{db: db, timeout: timeout}
}

func (t *PostgresSessionTx) RunInTx(ctx context.Context, sessionID id.SessionID, fn func(ctx context.Context) error) error {
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

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTxError(err, "failed to begin session transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := txcontext.AdvisoryLock(ctx, tx, txcontext.LockKey(auditstore.LockScope, sessionID.String())); err != nil {
		return wrapTxError(err, "failed to lock session")
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapTxError(err, "failed to commit session transaction")
	}
	return nil
}

func wrapTxError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
}

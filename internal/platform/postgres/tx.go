package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Tx runs nested store writes in one database transaction. Stores pick the
// transaction up from the context via tx.Executor.
type Tx struct {
	db      *sql.DB
	Timeout time.Duration
}

// NewTx returns a Tx with the default timeout.
func NewTx(db *sql.DB) *Tx {
	return &Tx{db: db}
}

// RunInTx commits when fn succeeds and rolls back otherwise. Contexts
// without a deadline get the Tx timeout.
func (t *Tx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

package service

import (
	"context"
	"sync"

	dErrors "mountpass/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for nested pass writes.
// Stores reached with txCtx take part in the same transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Snapshotter is implemented by in-memory stores that can roll back.
type Snapshotter interface {
	Snapshot() (restore func())
}

// inMemoryTx serialises transactions with a single lock and restores
// every store's snapshot when fn fails. Reads outside a transaction may
// observe uncommitted writes.
type inMemoryTx struct {
	mu     sync.Mutex
	stores []Snapshotter
}

// NewInMemoryTx returns a StoreTx over the given in-memory stores.
func NewInMemoryTx(stores ...Snapshotter) StoreTx {
	return &inMemoryTx{stores: stores}
}

func (t *inMemoryTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	restores := make([]func(), len(t.stores))
	for i, st := range t.stores {
		restores[i] = st.Snapshot()
	}
	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}

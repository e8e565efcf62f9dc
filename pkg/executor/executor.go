// Package executor is the single transaction boundary of the service. Every
// state-changing operation of every ledger and bridge runs through Execute,
// one at a time, inside one store transaction.
package executor

import (
	"context"
	"sync"

	"github.com/chainsafe/gogo-bridge/pkg/store"
)

// Executor serializes operations over a store.
type Executor struct {
	mu    sync.RWMutex
	store store.Store
}

// New creates an Executor over s.
func New(s store.Store) *Executor {
	return &Executor{store: s}
}

// Execute runs fn exclusively inside a read-write transaction. A context that
// is done before the operation starts aborts it with no effect; once fn has
// started, cancellation no longer applies and fn runs to completion or error.
func (e *Executor) Execute(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.Update(context.WithoutCancel(ctx), fn)
}

// Query runs fn inside a read-only transaction. Queries run concurrently with
// each other but never observe a half-applied operation.
func (e *Executor) Query(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.store.View(ctx, fn)
}

// Ping reports whether the underlying store is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Package dbtest fakes pgx transactions for service tests. Writes
// registered with OnCommit become visible only when the outermost Tx
// commits; nested transactions behave like savepoints.
package dbtest

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Tx struct {
	pgx.Tx
	pool     *TxPool
	parent   *Tx
	onCommit []func()
	closed   bool
}

// Begin opens a savepoint. Its hooks move to the parent on commit and are
// dropped on rollback.
func (t *Tx) Begin(context.Context) (pgx.Tx, error) {
	return &Tx{pool: t.pool, parent: t}, nil
}

func (t *Tx) Commit(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	if t.parent != nil {
		t.parent.onCommit = append(t.parent.onCommit, t.onCommit...)
		return nil
	}

	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	for _, fn := range t.onCommit {
		fn()
	}
	t.pool.Commits++
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	if t.parent == nil {
		t.pool.mu.Lock()
		t.pool.Rollbacks++
		t.pool.mu.Unlock()
	}
	return nil
}

// Exec understands only the processed_events insert used for deduplication.
func (t *Tx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	id, _ := args[0].(string)

	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	if t.pool.processed[id] {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
	}
	t.onCommit = append(t.onCommit, func() { t.pool.processed[id] = true })

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type TxPool struct {
	mu        sync.Mutex
	processed map[string]bool
	Commits   int
	Rollbacks int
}

func NewTxPool() *TxPool {
	return &TxPool{processed: make(map[string]bool)}
}

func (p *TxPool) Begin(context.Context) (pgx.Tx, error) {
	return &Tx{pool: p}, nil
}

// OnCommit runs fn when tx commits, or right away when tx is not a fake.
func OnCommit(tx pgx.Tx, fn func()) {
	if t, ok := tx.(*Tx); ok {
		t.onCommit = append(t.onCommit, fn)
		return
	}
	fn()
}

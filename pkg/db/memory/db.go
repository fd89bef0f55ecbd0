package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"staybook/pkg/db"
)

type transaction struct {
	id              string
	rollbackActions []func()
}

// DB is an in-process store with serializable transactions. A single
// mutex is held for the whole transaction, and operations outside a
// transaction take it for their own duration.
type DB struct {
	mu        sync.Mutex
	nextTrxID atomic.Int64
}

func New() *DB {
	return &DB{}
}

func (d *DB) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if _, ok := transactionFromContext(ctx); ok {
		return fn(ctx)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	trx := &transaction{id: fmt.Sprintf("trx-%d", d.nextTrxID.Add(1))}
	if err := fn(withTransaction(ctx, trx)); err != nil {
		for i := len(trx.rollbackActions) - 1; i >= 0; i-- {
			trx.rollbackActions[i]()
		}
		return err
	}

	return nil
}

// acquire locks the store unless ctx already runs inside a transaction.
func (d *DB) acquire(ctx context.Context) (*transaction, func()) {
	if trx, ok := transactionFromContext(ctx); ok {
		return trx, func() {}
	}
	d.mu.Lock()
	return nil, d.mu.Unlock
}

// Collection holds documents of one type keyed by string id.
type Collection[T any] struct {
	db   *DB
	rows map[string]T
}

func NewCollection[T any](d *DB) *Collection[T] {
	return &Collection[T]{
		db:   d,
		rows: make(map[string]T),
	}
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool) {
	_, release := c.db.acquire(ctx)
	defer release()

	v, ok := c.rows[id]
	return v, ok
}

// Insert stores v under id and fails with ErrDuplicateKey if id exists.
func (c *Collection[T]) Insert(ctx context.Context, id string, v T) error {
	trx, release := c.db.acquire(ctx)
	defer release()

	if _, exists := c.rows[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, id)
	}
	c.put(trx, id, v)
	return nil
}

// Put inserts or replaces the document stored under id.
func (c *Collection[T]) Put(ctx context.Context, id string, v T) {
	trx, release := c.db.acquire(ctx)
	defer release()

	c.put(trx, id, v)
}

// Update applies fn to the stored document. fn returns false to abort
// without writing. The first result reports whether the document exists.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(v *T) bool) (found bool, written bool) {
	trx, release := c.db.acquire(ctx)
	defer release()

	v, ok := c.rows[id]
	if !ok {
		return false, false
	}
	if !fn(&v) {
		return true, false
	}
	c.put(trx, id, v)
	return true, true
}

func (c *Collection[T]) Delete(ctx context.Context, id string) bool {
	trx, release := c.db.acquire(ctx)
	defer release()

	prev, ok := c.rows[id]
	if !ok {
		return false
	}
	delete(c.rows, id)
	if trx != nil {
		trx.rollbackActions = append(trx.rollbackActions, func() {
			c.rows[id] = prev
		})
	}
	return true
}

// Find returns every document matching match, in no particular order.
func (c *Collection[T]) Find(ctx context.Context, match func(v T) bool) []T {
	_, release := c.db.acquire(ctx)
	defer release()

	var result []T
	for _, v := range c.rows {
		if match == nil || match(v) {
			result = append(result, v)
		}
	}
	return result
}

// UpdateMany applies fn to every document matching match and returns the
// number of documents written.
func (c *Collection[T]) UpdateMany(ctx context.Context, match func(v T) bool, fn func(v *T)) int {
	trx, release := c.db.acquire(ctx)
	defer release()

	n := 0
	for id, v := range c.rows {
		if !match(v) {
			continue
		}
		fn(&v)
		c.put(trx, id, v)
		n++
	}
	return n
}

func (c *Collection[T]) put(trx *transaction, id string, v T) {
	if trx != nil {
		prev, existed := c.rows[id]
		trx.rollbackActions = append(trx.rollbackActions, func() {
			if existed {
				c.rows[id] = prev
				return
			}
			delete(c.rows, id)
		})
	}
	c.rows[id] = v
}

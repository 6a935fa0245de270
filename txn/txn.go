// Package txn implements the transaction and cursor-pool model: a Txn
// wraps one kv.Tx/kv.RwTx, leases cursors from a small per-table pool, and
// — for write transactions — accumulates a ChangeSet delivered to the
// watcher dispatcher on commit.
package txn

import (
	"context"

	"github.com/erigontech/objectdb/kv"
)

// State is a transaction's lifecycle stage.
type State uint8

const (
	Open State = iota
	Committed
	Aborted
)

// Txn is leased to exactly one goroutine for its entire lifetime — it
// must never be passed to another goroutine, matching the backing store's
// own thread-affinity requirement for write transactions.
type Txn struct {
	ctx   context.Context
	tx    kv.Tx
	rw    kv.RwTx
	write bool
	state State

	cursors map[string][]kv.Cursor
	changes *ChangeSet
}

// newRead wraps a read-only kv.Tx.
func newRead(ctx context.Context, tx kv.Tx) *Txn {
	return &Txn{ctx: ctx, tx: tx, cursors: make(map[string][]kv.Cursor)}
}

// newWrite wraps a kv.RwTx and allocates its ChangeSet.
func newWrite(ctx context.Context, tx kv.RwTx) *Txn {
	return &Txn{ctx: ctx, tx: tx, rw: tx, write: true, cursors: make(map[string][]kv.Cursor), changes: NewChangeSet()}
}

// Begin opens a transaction against db: write=true requests a serialized
// write transaction, write=false a concurrent read transaction.
func Begin(ctx context.Context, db kv.RwDB, write bool) (*Txn, error) {
	if write {
		rw, err := db.BeginRw(ctx)
		if err != nil {
			return nil, err
		}
		return newWrite(ctx, rw), nil
	}
	ro, err := db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	return newRead(ctx, ro), nil
}

func (t *Txn) Context() context.Context { return t.ctx }
func (t *Txn) State() State             { return t.state }
func (t *Txn) Write() bool              { return t.write }

// ChangeSet returns the transaction's accumulated change set. Nil for a
// read transaction.
func (t *Txn) ChangeSet() *ChangeSet { return t.changes }

// Get is a plain passthrough read, used by code that has not leased a
// cursor for a table (a single-key lookup does not need one).
func (t *Txn) Get(table string, key []byte) ([]byte, error) {
	return t.tx.GetOne(table, key)
}

func (t *Txn) Put(table string, k, v []byte) error {
	if !t.write {
		return errNotWritable
	}
	return t.rw.Put(table, k, v)
}

func (t *Txn) Delete(table string, k []byte) error {
	if !t.write {
		return errNotWritable
	}
	return t.rw.Delete(table, k)
}

func (t *Txn) ClearTable(table string) error {
	if !t.write {
		return errNotWritable
	}
	return t.rw.ClearTable(table)
}

// Cursor leases a read cursor for table, reusing one from the pool and
// repositioning is the caller's responsibility (First/Seek/etc).
func (t *Txn) Cursor(table string) (kv.Cursor, error) {
	if cs, ok := t.cursors[table]; ok && len(cs) > 0 {
		c := cs[len(cs)-1]
		t.cursors[table] = cs[:len(cs)-1]
		return c, nil
	}
	return t.tx.Cursor(table)
}

// RwCursor leases a write cursor for table.
func (t *Txn) RwCursor(table string) (kv.RwCursor, error) {
	if !t.write {
		return nil, errNotWritable
	}
	return t.rw.RwCursor(table)
}

// Release returns a cursor to the per-table pool instead of closing it,
// so the next caller in the same transaction reuses it instead of asking
// the backing store to open a fresh one.
func (t *Txn) Release(table string, c kv.Cursor) {
	t.cursors[table] = append(t.cursors[table], c)
}

// WithCursor leases a cursor for the duration of fn and releases it back
// to the pool afterward, regardless of error.
func (t *Txn) WithCursor(table string, fn func(kv.Cursor) error) error {
	c, err := t.Cursor(table)
	if err != nil {
		return err
	}
	defer t.Release(table, c)
	return fn(c)
}

// WithRwCursor is WithCursor's write-cursor counterpart.
func (t *Txn) WithRwCursor(table string, fn func(kv.RwCursor) error) error {
	if !t.write {
		return errNotWritable
	}
	c, err := t.rw.RwCursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// closeCursors closes every pooled cursor; called once at commit/abort so
// no cursor outlives its transaction.
func (t *Txn) closeCursors() {
	for _, cs := range t.cursors {
		for _, c := range cs {
			c.Close()
		}
	}
	t.cursors = nil
}

// Commit finalizes the transaction. Commit returns only an error; the
// caller (the Instance) takes the change set from ChangeSet (nil for a
// read transaction) and hands it to the watcher dispatcher after Commit
// returns successfully.
func (t *Txn) Commit() error {
	defer t.closeCursors()
	if t.write {
		if err := t.rw.Commit(); err != nil {
			t.state = Aborted
			return err
		}
	} else {
		if err := t.tx.Commit(); err != nil {
			t.state = Aborted
			return err
		}
	}
	t.state = Committed
	return nil
}

// Abort discards the transaction and its change set.
func (t *Txn) Abort() {
	defer t.closeCursors()
	if t.state != Open {
		return
	}
	if t.write {
		t.rw.Rollback()
	} else {
		t.tx.Rollback()
	}
	t.state = Aborted
}

// Package mdbx backs kv.RwDB with a real MDBX environment via
// github.com/erigontech/mdbx-go. It is the only package in the module that
// imports the mdbx-go binding directly; everything else programs against
// the kv interfaces.
package mdbx

import (
	"context"
	"os"
	"runtime"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/erigontech/objectdb/kv"
)

var tables = []string{kv.Primary, kv.Secondary, kv.Links, kv.Meta}

// DB is a kv.RwDB backed by a single MDBX environment with four named
// sub-databases, opened once at construction.
type DB struct {
	env  *mdbxgo.Env
	dbis map[string]mdbxgo.DBI

	// writerMu serializes BeginRw so a caller blocked on the writer lock
	// gets a clear, attributable wait instead of opaque MDBX blocking.
	writerMu chan struct{}
}

// Open creates or opens the MDBX environment rooted at path with the given
// map size in bytes and four sub-databases (kv.Primary/Secondary/Links/Meta).
func Open(path string, maxSizeBytes int64, relaxedDurability bool) (*DB, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "mdbx: mkdir")
	}
	env, err := mdbxgo.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: new env")
	}
	if err := env.SetOption(mdbxgo.OptMaxDB, uint64(len(tables))); err != nil {
		return nil, errors.Wrap(err, "mdbx: set max dbs")
	}
	if err := env.SetGeometry(-1, -1, int(maxSizeBytes), -1, -1, -1); err != nil {
		return nil, errors.Wrap(err, "mdbx: set geometry")
	}

	var flags uint
	if relaxedDurability {
		flags |= mdbxgo.SafeNoSync
	}
	if err := env.Open(path, flags, 0o644); err != nil {
		return nil, errors.Wrap(err, "mdbx: open")
	}

	db := &DB{env: env, dbis: make(map[string]mdbxgo.DBI, len(tables)), writerMu: make(chan struct{}, 1)}
	if err := env.Update(func(txn *mdbxgo.Txn) error {
		for _, name := range tables {
			dbi, err := txn.OpenDBI(name, mdbxgo.Create, nil, nil)
			if err != nil {
				return err
			}
			db.dbis[name] = dbi
		}
		return nil
	}); err != nil {
		env.Close()
		return nil, errors.Wrap(err, "mdbx: open tables")
	}
	return db, nil
}

func (db *DB) dbi(table string) (mdbxgo.DBI, error) {
	d, ok := db.dbis[table]
	if !ok {
		return 0, errors.Errorf("mdbx: unknown table %q", table)
	}
	return d, nil
}

// Close shuts down the environment. Any in-flight transactions must have
// already been committed or rolled back by the caller.
func (db *DB) Close() {
	db.env.Close()
}

func (db *DB) PageSize() uint64 {
	info, err := db.env.Info(nil)
	if err != nil {
		return 0
	}
	return uint64(info.PageSize)
}

func (db *DB) View(ctx context.Context, f func(kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) Update(ctx context.Context, f func(kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn, err := db.env.BeginTxn(nil, mdbxgo.Readonly)
	if err != nil {
		return nil, translate(err)
	}
	return &tx{db: db, txn: txn}, nil
}

// BeginRw blocks until any other write transaction resolves, then pins the
// calling goroutine to its OS thread for the transaction's lifetime, as
// mdbx-go requires of writers.
func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	select {
	case db.writerMu <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	runtime.LockOSThread()
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		runtime.UnlockOSThread()
		<-db.writerMu
		return nil, translate(err)
	}
	return &tx{db: db, txn: txn, write: true}, nil
}

type tx struct {
	db    *DB
	txn   *mdbxgo.Txn
	write bool
	done  bool
}

func (t *tx) release() {
	if t.write && !t.done {
		t.done = true
		<-t.db.writerMu
		runtime.UnlockOSThread()
	}
}

func (t *tx) Commit() error {
	defer t.release()
	if err := t.txn.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (t *tx) Rollback() {
	defer t.release()
	t.txn.Abort()
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if err != nil {
		if mdbxgo.IsNotFound(err) {
			return nil, nil
		}
		return nil, translate(err)
	}
	return v, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) Put(table string, k, v []byte) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Put(dbi, k, v, 0); err != nil {
		return translate(err)
	}
	return nil
}

func (t *tx) Delete(table string, k []byte) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Del(dbi, k, nil); err != nil {
		if mdbxgo.IsNotFound(err) {
			return nil
		}
		return translate(err)
	}
	return nil
}

func (t *tx) ClearTable(table string) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Drop(dbi, false); err != nil {
		return translate(err)
	}
	return nil
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, translate(err)
	}
	return &cursor{c: c}, nil
}

func (t *tx) RwCursor(table string) (kv.RwCursor, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return &cursor{c: c.(*cursor).c}, nil
}

func (t *tx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error {
	c, err := t.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	var k, v []byte
	if len(fromPrefix) == 0 {
		k, v, err = c.First()
	} else {
		k, v, err = c.Seek(fromPrefix)
	}
	for k != nil {
		if err != nil {
			return err
		}
		if err := walker(k, v); err != nil {
			return err
		}
		k, v, err = c.Next()
	}
	return nil
}

func (t *tx) ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error {
	err := t.ForEach(table, prefix, func(k, v []byte) error {
		if !hasPrefix(k, prefix) {
			return errStopIteration
		}
		return walker(k, v)
	})
	if errors.Is(err, errStopIteration) {
		return nil
	}
	return err
}

// errStopIteration lets the ForEach walker signal "past the prefix,
// stop" without it looking like a real failure to ForPrefix's caller.
var errStopIteration = errors.New("mdbx: stop iteration")

// ErrMapFull and ErrTxnFull are the sentinels translate attaches to the
// two resource-exhaustion conditions the objectdb layer surfaces as
// distinct error kinds (DBFull, WriteTxnFull) rather than the generic
// DBCorrupted every other backing-store failure maps to.
var (
	ErrMapFull = errors.New("mdbx: map full")
	ErrTxnFull = errors.New("mdbx: write txn full")
)

// IsMapFull reports whether err (or a cause in its chain) is ErrMapFull —
// the environment's configured map size has been exhausted.
func IsMapFull(err error) bool { return errors.Is(err, ErrMapFull) }

// IsTxnFull reports whether err (or a cause in its chain) is ErrTxnFull —
// a single write transaction's dirty-page list has been exhausted.
func IsTxnFull(err error) bool { return errors.Is(err, ErrTxnFull) }

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

type cursor struct {
	c *mdbxgo.Cursor
}

func (c *cursor) get(op mdbxgo.CursorOp) ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, op)
	if err != nil {
		if mdbxgo.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, translate(err)
	}
	return k, v, nil
}

func (c *cursor) First() ([]byte, []byte, error) { return c.get(mdbxgo.First) }
func (c *cursor) Last() ([]byte, []byte, error)  { return c.get(mdbxgo.Last) }
func (c *cursor) Next() ([]byte, []byte, error)  { return c.get(mdbxgo.Next) }
func (c *cursor) Prev() ([]byte, []byte, error)  { return c.get(mdbxgo.Prev) }

func (c *cursor) Current() ([]byte, []byte, error) { return c.get(mdbxgo.GetCurrent) }

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(seek, nil, mdbxgo.SetRange)
	if err != nil {
		if mdbxgo.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, translate(err)
	}
	return k, v, nil
}

func (c *cursor) SeekExact(key []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(key, nil, mdbxgo.Set)
	if err != nil {
		if mdbxgo.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, translate(err)
	}
	return k, v, nil
}

func (c *cursor) Put(k, v []byte) error {
	if err := c.c.Put(k, v, 0); err != nil {
		return translate(err)
	}
	return nil
}

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.SeekExact(k); err != nil {
		return err
	}
	if err := c.c.Del(0); err != nil {
		if mdbxgo.IsNotFound(err) {
			return nil
		}
		return translate(err)
	}
	return nil
}

func (c *cursor) DeleteCurrent() error {
	if err := c.c.Del(0); err != nil {
		return translate(err)
	}
	return nil
}

func (c *cursor) Close() {
	c.c.Close()
}

// translate maps an mdbx-go error into a plain wrapped error; higher
// layers (objectdb.Error) attach the typed Kind (DBFull/WriteTxnFull/
// DBCorrupted) based on these sentinels where it matters, everything else
// passes through unchanged per the error-handling policy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case mdbxgo.IsMapFull(err):
		return errors.Wrapf(ErrMapFull, "%v", err)
	case mdbxgo.IsTxnFull(err):
		return errors.Wrapf(ErrTxnFull, "%v", err)
	default:
		return errors.Wrap(err, "mdbx")
	}
}

// Package kv is the thin, byte-oriented contract over the backing B+tree
// store. It knows nothing about collections, objects, or indexes — those
// live in higher packages. It exists so the rest of the engine depends on
// an interface, not directly on the mdbx-go API surface.
package kv

import "context"

// Table names. Every opened environment has exactly these four, created
// once at Open time.
const (
	Primary   = "primary"
	Secondary = "secondary"
	Links     = "links"
	Meta      = "meta"
)

// Variable naming, kept consistent across this package and its callers:
//   tx   - a database transaction
//   RoTx - read-only transaction
//   RwTx - read-write transaction
//   k, v - key, value

// Getter wraps the read-side operations shared by read and write transactions.
type Getter interface {
	// GetOne returns a reference to a readonly section of memory that must
	// not be accessed after the owning transaction has terminated.
	GetOne(table string, key []byte) (val []byte, err error)
	Has(table string, key []byte) (bool, error)
}

// Putter wraps the single-entry write operation.
type Putter interface {
	Put(table string, k, v []byte) error
}

// Deleter wraps the single-entry delete operation.
type Deleter interface {
	Delete(table string, k []byte) error
}

// Closer releases an environment or a transaction's resources.
type Closer interface {
	Close()
}

// RoDB is the read-only view of an opened environment.
type RoDB interface {
	Closer
	View(ctx context.Context, f func(tx Tx) error) error
	// BeginRo opens a read transaction. The returned Tx must only be used
	// by the goroutine that created it.
	BeginRo(ctx context.Context) (Tx, error)
	PageSize() uint64
}

// RwDB is the read-write view of an opened environment. The backing store
// is single-writer: at most one RwTx exists at a time across the process.
type RwDB interface {
	RoDB
	Update(ctx context.Context, f func(tx RwTx) error) error
	// BeginRw opens a write transaction, blocking until any other write
	// transaction resolves. It pins the calling goroutine to its OS thread
	// for the transaction's lifetime (mdbx-go requires this of writers);
	// Commit/Rollback release the pin.
	BeginRw(ctx context.Context) (RwTx, error)
}

// Tx is a read transaction plus its cursor factory.
type Tx interface {
	Getter
	Commit() error
	Rollback()
	Cursor(table string) (Cursor, error)
	// ForEach walks every entry with key >= fromPrefix (or the whole table
	// if fromPrefix is nil), in key order, until walker returns an error
	// or the table is exhausted.
	ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error
	// ForPrefix walks every entry whose key has the given prefix.
	ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error
}

// RwTx additionally allows mutation and owns a write cursor factory.
type RwTx interface {
	Tx
	Putter
	Deleter
	RwCursor(table string) (RwCursor, error)
	// ClearTable removes every entry in table, across all collections;
	// it is not scoped to one collection's key range.
	ClearTable(table string) error
}

// Cursor walks a table's key space in order. If a positioning method
// returns an error, the returned key is nil; callers loop while k != nil.
type Cursor interface {
	First() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	SeekExact(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Current() (k, v []byte, err error)
	Close()
}

// RwCursor additionally allows mutation at the cursor's current position.
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
	// DeleteCurrent removes the entry the cursor currently points at
	// without requiring a fresh lookup.
	DeleteCurrent() error
}

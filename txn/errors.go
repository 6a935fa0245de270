package txn

import "errors"

// errNotWritable is returned when a write operation is attempted against a
// read-only Txn. Callers in higher packages translate this into the
// engine's IllegalArg error kind.
var errNotWritable = errors.New("txn: transaction is read-only")

// IsNotWritable reports whether err is the read-only-transaction sentinel.
func IsNotWritable(err error) bool { return errors.Is(err, errNotWritable) }

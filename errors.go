package objectdb

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind identifies the closed set of error categories the engine raises.
// Callers branch on kind via errors.As into *Error, never on message text.
type ErrKind uint8

const (
	// IllegalArg is a caller mistake: unknown property, invalid offset/limit,
	// a where-clause built against the wrong collection, a non-scalar sort key.
	IllegalArg ErrKind = iota + 1
	// InvalidObject means a record failed structural verification.
	InvalidObject
	// InvalidJSON means an import saw a non-array or a value not assignable
	// to its property's data type.
	InvalidJSON
	// AutoIncrementOverflow means the id counter saturated at math.MaxInt64.
	AutoIncrementOverflow
	// UniqueViolation means a unique index rejected a conflicting put.
	UniqueViolation
	// DBFull means the backing store's map is exhausted.
	DBFull
	// WriteTxnFull means a single write transaction's dirty page budget
	// was exhausted.
	WriteTxnFull
	// VersionError means a cursor-requiring evaluation (e.g. a Link filter)
	// ran without a transaction context.
	VersionError
	// DBCorrupted means the backing store itself reported corruption.
	DBCorrupted
)

func (k ErrKind) String() string {
	switch k {
	case IllegalArg:
		return "IllegalArg"
	case InvalidObject:
		return "InvalidObject"
	case InvalidJSON:
		return "InvalidJSON"
	case AutoIncrementOverflow:
		return "AutoIncrementOverflow"
	case UniqueViolation:
		return "UniqueViolation"
	case DBFull:
		return "DBFull"
	case WriteTxnFull:
		return "WriteTxnFull"
	case VersionError:
		return "VersionError"
	case DBCorrupted:
		return "DBCorrupted"
	default:
		return "Unknown"
	}
}

// Error is the tagged error value every engine-raised failure carries.
// Wrapping errors from the backing store (I/O faults) pass Kind=DBCorrupted
// or DBFull/WriteTxnFull only when the backing store itself reported that
// condition; otherwise they are wrapped unchanged, never re-tagged.
type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// newErr builds a stack-carrying *Error via pkg/errors so the first raise
// site is recoverable from a bug report without losing the typed Kind.
func newErr(kind ErrKind, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// IsKind reports whether err (or any cause it wraps) is an *Error of kind k.
func IsKind(err error, k ErrKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

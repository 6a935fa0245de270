package collection

import "errors"

// Sentinel errors surfaced by the collection engine. This package stays
// free of a dependency on the root objectdb error type (which would
// create an import cycle, since objectdb depends on collection); the
// Instance layer maps these to the typed *objectdb.Error kinds.
var (
	errInvalidObject          = errors.New("collection: object failed verification")
	errUniqueViolation        = errors.New("collection: unique index violation")
	errInvalidJSON            = errors.New("collection: invalid json")
	errAutoIncrementOverflow  = errors.New("collection: auto increment overflow")
)

func IsInvalidObject(err error) bool         { return errors.Is(err, errInvalidObject) }
func IsUniqueViolation(err error) bool        { return errors.Is(err, errUniqueViolation) }
func IsInvalidJSON(err error) bool            { return errors.Is(err, errInvalidJSON) }
func IsAutoIncrementOverflow(err error) bool  { return errors.Is(err, errAutoIncrementOverflow) }

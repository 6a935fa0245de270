// Package ffi carries the bridge-facing error-handle table that lets a
// foreign caller (over a Dart/C FFI boundary, or any other ABI that can
// only pass back an integer status) retrieve the message behind a failed
// call without the Go side ever handing out a live pointer into its own
// heap.
package ffi

import "sync"

// maxErrors bounds the table at a small constant size: a foreign caller
// is expected to read an error immediately after the call that produced
// it, so the table only needs to outlive a handful of in-flight calls,
// not the process lifetime.
const maxErrors = 10

type errEntry struct {
	code int64
	msg  string
}

// errorTable is a small ring of the most recent error messages, keyed by
// a monotonically increasing, wrapping, never-zero code so 0 can keep
// meaning "no error" on the foreign side.
type errorTable struct {
	mu      sync.Mutex
	entries []errEntry
	counter int64
}

var table = &errorTable{counter: 1}

// Register stores msg and returns the handle a foreign caller receives
// in place of the error itself. Past maxErrors entries the oldest is
// evicted.
func Register(msg string) int64 {
	table.mu.Lock()
	defer table.mu.Unlock()

	if len(table.entries) >= maxErrors {
		table.entries = table.entries[1:]
	}
	code := table.counter
	table.entries = append(table.entries, errEntry{code: code, msg: msg})
	table.counter++
	if table.counter == 0 {
		table.counter = 1
	}
	return code
}

// Lookup returns the message registered under code, if it is still in
// the table.
func Lookup(code int64) (string, bool) {
	table.mu.Lock()
	defer table.mu.Unlock()
	for _, e := range table.entries {
		if e.code == code {
			return e.msg, true
		}
	}
	return "", false
}

package persistence

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate indicates that a record with the same identity already exists.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConflict indicates that a uniqueness rule over live records was violated,
	// such as a second active slot for the same window.
	ErrConflict = errors.New("persistence: conflict")
	// ErrStale indicates that a conditional update found the row in a different state.
	ErrStale = errors.New("persistence: stale state")
	// ErrInsufficient indicates that a debit would take a balance below zero.
	ErrInsufficient = errors.New("persistence: insufficient balance")
	// ErrUnavailable indicates that the store could not serve the request right now.
	ErrUnavailable = errors.New("persistence: unavailable")
)

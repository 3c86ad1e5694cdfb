package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors:
//   - ErrNotFound: session, payment, resume token or signature reference is absent
//   - ErrConflict: a unique key (resume token, chain sequence) is already taken
//   - ErrExpired: a pending signature reference outlived its TTL
//   - ErrAlreadyUsed: a single-use reference or payment was already consumed
//   - ErrFrozen: the session's audit chain is frozen after an integrity break
//   - ErrUnavailable: the backing store could not be reached
//
// Input validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrFrozen      = errors.New("frozen")
	ErrUnavailable = errors.New("unavailable")
)

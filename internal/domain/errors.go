// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates the caller's input is missing or invalid.
var ErrValidation = errors.New("validation failed")

// ErrConfiguration indicates a required oracle credential or setting is absent.
var ErrConfiguration = errors.New("oracle is not configured")

// ErrUpstream indicates the oracle was unreachable or returned a non-success status.
var ErrUpstream = errors.New("oracle request failed")

// ErrParse indicates the oracle responded successfully but its content is not
// recoverable JSON.
var ErrParse = errors.New("oracle returned unparsable output")

// ErrCacheCorrupt indicates a stored optimization record failed to parse.
// Recovery is silent: the record is discarded and the session treated as
// never-optimized.
var ErrCacheCorrupt = errors.New("optimization record is corrupt")

// ErrBusy indicates an optimization is already in flight for the session.
var ErrBusy = errors.New("optimization already in progress")

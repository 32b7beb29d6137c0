package khatm

import "errors"

// Store-level failures. Stores tag their errors with these so callers can
// branch with errors.Is regardless of the backing driver.
var (
	ErrNotFound         = errors.New("khatm not found")
	ErrStoreUnavailable = errors.New("khatm store unavailable")
	ErrConflict         = errors.New("khatm transaction conflict: retry budget exhausted")
	ErrDuplicateSlug    = errors.New("khatm with this slug already exists")
)

// Allocation and validation failures.
var (
	ErrCycleLocked      = errors.New("khatm cycle is completed and locked")
	ErrInvalidPageCount = errors.New("requested page count must be positive")
	ErrInvalidName      = errors.New("khatm name must not be empty")
	ErrCorruptRecord    = errors.New("khatm record has no pages")
	ErrUnknownPolicy    = errors.New("unknown cycle completion policy")
)

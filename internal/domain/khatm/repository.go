package khatm

import "context"

// MutateFunc receives the record as read inside a transaction and returns the
// record to write back. It may run several times when the store retries a
// conflicting transaction, so it must not have side effects outside its result.
type MutateFunc func(current Khatm) (Khatm, error)

// Repository defines the persistence operations for cycle records.
type Repository interface {
	// Create assigns ID and timestamps and inserts the record.
	// Returns ErrDuplicateSlug when the slug is taken.
	Create(ctx context.Context, k *Khatm) error
	GetByID(ctx context.Context, id string) (*Khatm, error)
	GetBySlug(ctx context.Context, slug string) (*Khatm, error)
	ListAll(ctx context.Context) ([]*Khatm, error)

	// Transact reads the record, applies fn and writes the result as one
	// serializable transaction. Transient conflicts are retried by the store;
	// ErrNotFound is returned without any write.
	Transact(ctx context.Context, id string, fn MutateFunc) error
}

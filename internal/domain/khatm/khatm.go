// internal/domain/khatm/khatm.go
package khatm

import "time"

// DefaultTotalPages is the page count of the standard Madani mushaf.
const DefaultTotalPages = 604

// Khatm is the cycle record of one shared reading group.
// Corresponds to the 'khatms' table.
type Khatm struct {
	ID             string // uuid, opaque to callers
	Name           string
	Slug           string // human-shareable, unique
	TotalPages     int
	CurrentPage    int // next unassigned page, 1..TotalPages at rest
	CompletedCount int // full traversals of 1..TotalPages
	IsCompleted    bool // only set under CompletionLock
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Assignment is a contiguous page range granted to one participant.
type Assignment struct {
	KhatmID        string
	StartPage      int
	EndPage        int
	Requested      int
	Cycle          int // 1-based cycle the range belongs to
	CycleCompleted bool
}

// Pages returns the number of pages actually granted.
func (a Assignment) Pages() int {
	return a.EndPage - a.StartPage + 1
}

// Truncated reports whether fewer pages were granted than requested.
func (a Assignment) Truncated() bool {
	return a.Pages() < a.Requested
}

// CompletionPolicy decides what happens to a record after its cycle completes.
type CompletionPolicy string

const (
	// CompletionReset reopens the record for the next cycle immediately.
	CompletionReset CompletionPolicy = "reset"
	// CompletionLock flags the record completed and rejects assignments until reopened.
	CompletionLock CompletionPolicy = "lock"
)

// ParseCompletionPolicy maps a config value to a policy; empty means reset.
func ParseCompletionPolicy(s string) (CompletionPolicy, error) {
	switch CompletionPolicy(s) {
	case "", CompletionReset:
		return CompletionReset, nil
	case CompletionLock:
		return CompletionLock, nil
	default:
		return "", ErrUnknownPolicy
	}
}

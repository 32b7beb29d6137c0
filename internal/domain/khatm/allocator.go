package khatm

import "math"

// Allocate computes the page range granted to a request of `requested` pages
// against the current state of a record, and returns the state to persist.
//
// Allocate is pure: the caller must run it inside the store transaction that
// read `current` and write back the returned record in that same transaction.
func Allocate(current Khatm, requested int, policy CompletionPolicy) (Assignment, Khatm, error) {
	if requested <= 0 {
		return Assignment{}, current, ErrInvalidPageCount
	}
	if current.TotalPages <= 0 {
		return Assignment{}, current, ErrCorruptRecord
	}
	if policy == CompletionLock && current.IsCompleted {
		return Assignment{}, current, ErrCycleLocked
	}

	start := normalizedPage(current)
	remaining := current.TotalPages - start + 1
	granted := min(requested, remaining)
	end := start + granted - 1
	next := end + 1

	a := Assignment{
		KhatmID:   current.ID,
		StartPage: start,
		EndPage:   end,
		Requested: requested,
		Cycle:     current.CompletedCount + 1,
	}

	updated := current
	if next > current.TotalPages {
		// Never persist TotalPages+1; the record is reopened at page 1.
		a.CycleCompleted = true
		updated.CurrentPage = 1
		updated.CompletedCount = current.CompletedCount + 1
		updated.IsCompleted = policy == CompletionLock
	} else {
		updated.CurrentPage = next
	}
	return a, updated, nil
}

// normalizedPage returns the record's current page, treating out-of-range
// legacy values as the start of a fresh cycle.
func normalizedPage(k Khatm) int {
	if k.CurrentPage < 1 || k.CurrentPage > k.TotalPages {
		return 1
	}
	return k.CurrentPage
}

// IsCorrupt reports whether the stored current page lies outside 1..TotalPages.
func IsCorrupt(k Khatm) bool {
	return k.TotalPages <= 0 || k.CurrentPage < 1 || k.CurrentPage > k.TotalPages
}

// RemainingPages is the number of unassigned pages in the current cycle.
func RemainingPages(k Khatm) int {
	if k.TotalPages <= 0 {
		return 0
	}
	return k.TotalPages - normalizedPage(k) + 1
}

// Progress is the rounded percentage of the current cycle already assigned.
func Progress(k Khatm) int {
	if k.TotalPages <= 0 {
		return 0
	}
	return int(math.Round(float64(normalizedPage(k)-1) / float64(k.TotalPages) * 100))
}

// CurrentCycle is the 1-based number of the cycle in progress.
func CurrentCycle(k Khatm) int {
	return k.CompletedCount + 1
}

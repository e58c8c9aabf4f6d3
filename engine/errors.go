/*
errors.go - Centralized error types for the sheet-sync engine

PURPOSE:
  All engine error kinds in one place. Collaborators wrap these with
  additional context; callers distinguish them with errors.Is().

ERROR CATEGORIES:
  1. Fetch errors      - transient, absorbed by the poller, retried next tick
  2. Write errors      - surfaced to the caller, never retried by the engine
  3. Allocation errors - mapping gaps and retry exhaustion

USAGE:
    if errors.Is(err, engine.ErrMappingUnresolved) {
        // reject the request, mapping data has no entry yet
    }

SEE ALSO:
  - allocator.go: produces MappingUnresolvedError / AllocationExhaustedError
  - poller.go: absorbs fetch errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFetch is returned when the external data source cannot be read.
	// Transient: the poller logs it and retries on the next tick.
	ErrFetch = errors.New("data source fetch failed")

	// ErrWrite is returned when an append or update against the external
	// data source fails. The engine does not retry writes; the caller
	// decides whether to resubmit.
	ErrWrite = errors.New("data source write failed")

	// ErrMappingUnresolved is returned when no prefix or suffix can be
	// resolved for the requested company/owner. Permanent for the given
	// inputs until the mapping data changes.
	ErrMappingUnresolved = errors.New("company/owner mapping unresolved")

	// ErrAllocationExhausted is returned after the bounded number of
	// collision retries. Permanent for that call; retry the whole request.
	ErrAllocationExhausted = errors.New("code allocation retries exhausted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FetchError wraps a data source read failure.
type FetchError struct {
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch: %v", e.Cause)
}

func (e *FetchError) Unwrap() error { return ErrFetch }

// WriteError wraps a data source write failure.
type WriteError struct {
	Op    string // "append" or "update"
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *WriteError) Unwrap() error { return ErrWrite }

// MappingUnresolvedError reports which side of the mapping is missing.
type MappingUnresolvedError struct {
	Company string
	Owner   string
	// The keys that are currently resolvable, so callers can present
	// actionable choices the way the source dashboard does.
	KnownCompanies []string
	KnownOwners    []string
}

func (e *MappingUnresolvedError) Error() string {
	return fmt.Sprintf("no code mapping for company %q / owner %q", e.Company, e.Owner)
}

func (e *MappingUnresolvedError) Unwrap() error { return ErrMappingUnresolved }

// AllocationExhaustedError reports the last colliding candidate.
type AllocationExhaustedError struct {
	Attempts  int
	Candidate string
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("allocation failed after %d attempts (last candidate %s)", e.Attempts, e.Candidate)
}

func (e *AllocationExhaustedError) Unwrap() error { return ErrAllocationExhausted }

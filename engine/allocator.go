/*
allocator.go - Concurrency-safe structured-code allocation

PURPOSE:
  Produces a new unique project code <Prefix><Sequence>-<Suffix> for a
  (company, owner) pair. The whole attempt - fresh fetch, mapping lookup,
  sequence computation, a second fetch that re-verifies the candidate
  immediately before append, and the append itself - runs inside one
  process-wide mutual-exclusion region, so two concurrent callers can
  never commit the same sequence number. The re-verify catches writers
  OUTSIDE this process that took the sequence between the two reads.

RETRY STATE MACHINE:
  Attempting(n) -> Success
                -> Retrying(n+1)   on collision or fetch failure,
                                   after backoff(n)
                -> Exhausted       after MaxAttempts
  backoff(n) grows linearly: BackoffBase * (n+1). The schedule is a
  standalone method so the bound and delays are testable without I/O.

FAILURE KINDS:
  ErrMappingUnresolved   no prefix or no suffix for the inputs; permanent
                         until mapping data changes, never retried here
  ErrAllocationExhausted all attempts collided
  ErrFetch / ErrWrite    source failures, surfaced to the caller

CANCELLATION:
  allocate() exposes no cancellation primitive. Each attempt's fetch is
  bounded by the configured timeout; a caller that gives up simply
  discards the result. Allocation is low-frequency, so serializing all
  callers behind one lock is an accepted throughput tradeoff.

SEE ALSO:
  - mapping.go: table construction and sequence scan
  - source.go: the external store appended to
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AllocatorConfig carries the allocation tunables.
type AllocatorConfig struct {
	MaxAttempts  int           // collision retry bound, default 5
	BackoffBase  time.Duration // linear backoff unit, default 100ms
	FetchTimeout time.Duration // per-attempt fetch deadline, default 30s
}

func (c *AllocatorConfig) withDefaults() AllocatorConfig {
	out := *c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 5
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = 100 * time.Millisecond
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = 30 * time.Second
	}
	return out
}

// Allocator hands out unique structured codes.
type Allocator struct {
	source    DataSource
	overrides MappingOverrides
	cfg       AllocatorConfig
	logger    zerolog.Logger

	mu    sync.Mutex // the process-wide allocation region
	sleep func(time.Duration)
}

// NewAllocator creates an allocator over the given source.
func NewAllocator(source DataSource, overrides MappingOverrides, cfg AllocatorConfig, logger zerolog.Logger) *Allocator {
	return &Allocator{
		source:    source,
		overrides: overrides,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "allocator").Logger(),
		sleep:     time.Sleep,
	}
}

// Backoff returns the delay applied after a failed attempt n (0-based).
func (a *Allocator) Backoff(attempt int) time.Duration {
	return a.cfg.BackoffBase * time.Duration(attempt+1)
}

// Preview computes the code the next allocation would produce against an
// already-fetched snapshot. No lock, no uniqueness guarantee: a preview
// is advisory and may be stale by the time a real allocation runs.
func (a *Allocator) Preview(snap *Snapshot, company, owner string) (string, error) {
	return a.compose(snap, company, owner)
}

// Allocate produces a unique code and appends the given row (with the
// code filled in) to the data source, all under the allocation lock.
// On success the returned row is the appended one.
func (a *Allocator) Allocate(company, owner string, row Row) (string, Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var lastCandidate string
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		snap, err := a.fetchFresh()
		if err != nil {
			if attempt == a.cfg.MaxAttempts-1 {
				return "", nil, err
			}
			a.sleep(a.Backoff(attempt))
			continue
		}

		code, err := a.compose(snap, company, owner)
		if err != nil {
			// Mapping gaps do not heal by retrying.
			return "", nil, err
		}

		// Re-read just before committing. The sequence came from the
		// first read; an external writer may have taken it since.
		verify, err := a.fetchFresh()
		if err != nil {
			if attempt == a.cfg.MaxAttempts-1 {
				return "", nil, err
			}
			a.sleep(a.Backoff(attempt))
			continue
		}
		if verify.HasCode(code) {
			lastCandidate = code
			a.logger.Warn().
				Str("candidate", code).
				Int("attempt", attempt+1).
				Int("max", a.cfg.MaxAttempts).
				Msg("code collision, retrying")
			a.sleep(a.Backoff(attempt))
			continue
		}

		committed := row.Clone()
		if committed == nil {
			committed = Row{}
		}
		committed[ColProjectCode] = code
		if err := a.append(committed); err != nil {
			return "", nil, err
		}
		a.logger.Info().Str("code", code).Int("attempt", attempt+1).Msg("code allocated")
		return code, committed, nil
	}

	return "", nil, &AllocationExhaustedError{Attempts: a.cfg.MaxAttempts, Candidate: lastCandidate}
}

// compose resolves the mapping tables against the snapshot and assembles
// the candidate code.
func (a *Allocator) compose(snap *Snapshot, company, owner string) (string, error) {
	companies := BuildCompanyPrefixMap(snap, a.overrides.CompanyPrefixes)
	owners := BuildOwnerSuffixMap(snap, a.overrides.OwnerSuffixes)

	prefix := companies[company]
	suffix := owners[owner]
	if prefix == "" || suffix == "" {
		return "", &MappingUnresolvedError{
			Company:        company,
			Owner:          owner,
			KnownCompanies: sortedKeys(companies),
			KnownOwners:    sortedKeys(owners),
		}
	}
	return fmt.Sprintf("%s%04d-%s", prefix, NextSequence(snap), suffix), nil
}

// fetchFresh reads the source directly; the cached snapshot in the store
// may be a poll interval stale, which is not good enough for uniqueness.
func (a *Allocator) fetchFresh() (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout)
	defer cancel()

	columns, rows, err := a.source.FetchRows(ctx)
	if err != nil {
		if !errors.Is(err, ErrFetch) {
			err = &FetchError{Cause: err}
		}
		return nil, err
	}
	return NewSnapshot(columns, rows, time.Now()), nil
}

func (a *Allocator) append(row Row) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout)
	defer cancel()

	if err := a.source.AppendRow(ctx, row); err != nil {
		if !errors.Is(err, ErrWrite) {
			err = &WriteError{Op: "append", Cause: err}
		}
		return err
	}
	return nil
}

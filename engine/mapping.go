/*
mapping.go - Company-prefix and owner-suffix mapping tables

PURPOSE:
  Derives the two mapping tables a structured code is assembled from:
    CompanyPrefixMap  company name -> prefix letter
    OwnerSuffixMap    owner name   -> suffix string
  Both are learned from the codes already present in the snapshot and
  filled with static overrides from configuration.

PRECEDENCE (asymmetric, intentionally):
  CompanyPrefixMap  learned-first: the first (company, prefix) pair seen
                    in row order wins; overrides only fill companies the
                    sheet has never shown.
  OwnerSuffixMap    override-first: configured suffixes win; learned
                    values (the most frequent suffix among the owner's
                    codes) only fill owners without an override.
  The asymmetry mirrors the upstream system's observed behavior and is
  preserved as-is.

RECOMPUTATION:
  Tables are rebuilt on demand from the given snapshot and are not cached
  between allocation calls. Correctness over speed; the sheet is small.
*/
package engine

import (
	"sort"
	"strings"
)

// MappingOverrides carries the statically configured mapping entries.
type MappingOverrides struct {
	CompanyPrefixes map[string]string
	OwnerSuffixes   map[string]string
}

// BuildCompanyPrefixMap scans rows in snapshot order, recording the first
// (company, prefix) pair per company, then fills gaps from overrides.
// Rows with missing or malformed codes are skipped.
func BuildCompanyPrefixMap(snap *Snapshot, overrides map[string]string) map[string]string {
	m := make(map[string]string)
	if snap != nil {
		for _, row := range snap.Rows {
			company := row.Get(ColCompany)
			prefix := CodePrefix(row.Code())
			if company == "" || prefix == "" {
				continue
			}
			if _, seen := m[company]; !seen {
				m[company] = prefix
			}
		}
	}
	for company, prefix := range overrides {
		if _, seen := m[company]; !seen {
			m[company] = prefix
		}
	}
	return m
}

// BuildOwnerSuffixMap starts from the overrides (uppercased), then fills
// owners without an override with the most frequent suffix observed among
// that owner's codes. Frequency ties break toward the suffix encountered
// first in row order. Rows with missing or malformed codes are skipped.
func BuildOwnerSuffixMap(snap *Snapshot, overrides map[string]string) map[string]string {
	m := make(map[string]string, len(overrides))
	for owner, suffix := range overrides {
		m[owner] = strings.ToUpper(suffix)
	}
	if snap == nil {
		return m
	}

	type tally struct {
		count int
		order int // first-encountered position, tie-break
	}
	counts := make(map[string]map[string]*tally)
	seen := 0
	for _, row := range snap.Rows {
		owner := row.Get(ColOwner)
		suffix := CodeSuffix(row.Code())
		if owner == "" || suffix == "" {
			continue
		}
		byOwner := counts[owner]
		if byOwner == nil {
			byOwner = make(map[string]*tally)
			counts[owner] = byOwner
		}
		t := byOwner[suffix]
		if t == nil {
			t = &tally{order: seen}
			seen++
			byOwner[suffix] = t
		}
		t.count++
	}

	for owner, byOwner := range counts {
		if _, ok := m[owner]; ok {
			continue
		}
		var best string
		var bestTally *tally
		for suffix, t := range byOwner {
			if bestTally == nil || t.count > bestTally.count ||
				(t.count == bestTally.count && t.order < bestTally.order) {
				best, bestTally = suffix, t
			}
		}
		m[owner] = best
	}
	return m
}

// NextSequence returns one plus the highest sequence number parsed from
// any structured code in the snapshot, across all prefixes. With no
// parsable codes the sequence starts at 1.
func NextSequence(snap *Snapshot) int {
	max := 0
	if snap != nil {
		for _, row := range snap.Rows {
			if n, ok := CodeSequence(row.Code()); ok && n > max {
				max = n
			}
		}
	}
	return max + 1
}

// sortedKeys returns map keys in lexical order, for stable error payloads.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

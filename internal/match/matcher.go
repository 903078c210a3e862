// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package match

import (
	"github.com/sahilm/fuzzy"
)

// MinConfidence is the acceptance floor for a match. A best candidate that
// scores strictly below this similarity is reported as "no match" rather
// than returned as a weak guess.
const MinConfidence = 0.5

// =============================================================================
// MATCHER INTERFACE
// =============================================================================

// Matcher selects the candidate that best matches a free-text query.
// Implementations return the index of the winning candidate, or false when
// no candidate clears the confidence floor. An empty candidate list is
// always "no match".
type Matcher interface {
	BestMatch(query string, candidates []string) (int, bool)
}

// =============================================================================
// LEVENSHTEIN MATCHER
// =============================================================================

// LevenshteinMatcher scores every candidate with Similarity and keeps the
// maximum. Replacement happens only on strict improvement; when two
// candidates tie, the earliest one in the supplied ordering wins.
type LevenshteinMatcher struct{}

// NewLevenshteinMatcher returns the default edit-distance matcher.
func NewLevenshteinMatcher() *LevenshteinMatcher {
	return &LevenshteinMatcher{}
}

// BestMatch implements Matcher.
func (m *LevenshteinMatcher) BestMatch(query string, candidates []string) (int, bool) {
	bestIdx := -1
	bestScore := -1.0

	for i, c := range candidates {
		score := Similarity(c, query)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < MinConfidence {
		return -1, false
	}
	return bestIdx, true
}

// =============================================================================
// RANKED MATCHER
// =============================================================================

// RankedMatcher uses a ranked subsequence search (github.com/sahilm/fuzzy)
// to pick the top hit, then gates it by the same similarity floor as the
// Levenshtein matcher. The two backends may rank ambiguous inputs
// differently; callers must not assume parity beyond the floor contract.
type RankedMatcher struct{}

// NewRankedMatcher returns the ranked-search matcher backend.
func NewRankedMatcher() *RankedMatcher {
	return &RankedMatcher{}
}

// BestMatch implements Matcher.
func (m *RankedMatcher) BestMatch(query string, candidates []string) (int, bool) {
	results := fuzzy.Find(query, candidates)
	if len(results) == 0 {
		// Subsequence search found nothing; fall back to edit distance so
		// that reworded queries ("grocery" vs "groceries") still resolve.
		return NewLevenshteinMatcher().BestMatch(query, candidates)
	}

	top := results[0].Index
	if Similarity(candidates[top], query) < MinConfidence {
		return -1, false
	}
	return top, true
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package match

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// SIMILARITY SCORING
// =============================================================================

// Similarity computes a normalized similarity score between two strings.
// Returns a value in [0, 1] where 1 means identical and 0 means completely
// different. Both inputs are NFC-normalized and lower-cased before scoring,
// so "Buy Milk" and "buy milk" score 1.0.
//
// The score is derived from the classic Levenshtein edit distance
// (insertion, deletion, and substitution each cost 1):
//
//	score = 1 - distance / max(len(a), len(b))
//
// Two empty strings are defined to be identical (score 1.0).
// The function is pure, deterministic, and symmetric.
func Similarity(a, b string) float64 {
	ra := normalizeRunes(a)
	rb := normalizeRunes(b)

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}

	return 1.0 - float64(editDistance(ra, rb))/float64(maxLen)
}

// normalizeRunes case-folds and NFC-normalizes a string for comparison.
// NFC normalization keeps composed and decomposed forms of the same
// character from counting as edits.
func normalizeRunes(s string) []rune {
	return []rune(strings.ToLower(norm.NFC.String(s)))
}

// editDistance computes the Levenshtein distance between two rune slices
// using the standard dynamic-programming recurrence. Only two rows are kept,
// so memory is O(min edge) rather than O(n*m).
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := 0; i <= len(a); i++ {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = minInt(
				curr[i-1]+1,      // deletion
				prev[i]+1,        // insertion
				prev[i-1]+cost,   // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// minInt returns the smallest of three ints.
func minInt(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

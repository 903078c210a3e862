// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package match

import (
	"math"
	"testing"
)

// =============================================================================
// SIMILARITY TESTS
// =============================================================================

func TestSimilarity_Identity(t *testing.T) {
	inputs := []string{"", "a", "buy milk", "Walk the dog", "日本語のテスト"}

	for _, s := range inputs {
		if got := Similarity(s, s); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestSimilarity_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"buy milk", "buy milka"},
		{"groceries", "Buy groceries"},
		{"", "abc"},
		{"kitten", "sitting"},
	}

	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarity_EmptyStrings(t *testing.T) {
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("Similarity of two empty strings = %v, want 1.0", got)
	}

	if got := Similarity("", "abc"); got != 0.0 {
		t.Errorf("Similarity(\"\", \"abc\") = %v, want 0.0", got)
	}
}

func TestSimilarity_CaseInsensitive(t *testing.T) {
	if got := Similarity("Buy Milk", "buy milk"); got != 1.0 {
		t.Errorf("Similarity should be case-insensitive, got %v", got)
	}
}

func TestSimilarity_KnownDistances(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		// kitten -> sitting: distance 3, max length 7
		{"kitten", "sitting", 1.0 - 3.0/7.0},
		// one substitution in a 4-char string
		{"milk", "silk", 0.75},
		// disjoint strings of equal length
		{"abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different long string"},
		{"short", "s"},
		{"", "x"},
		{"same", "same"},
	}

	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0.0 || got > 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, outside [0, 1]", p[0], p[1], got)
		}
	}
}

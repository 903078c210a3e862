// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package match provides approximate string matching for resolving free-text
// references to todo items.
//
// Two backends are available behind the Matcher interface:
//   - LevenshteinMatcher: normalized edit-distance scoring (the default)
//   - RankedMatcher: ranked subsequence search via github.com/sahilm/fuzzy
//
// Both honor the same minimum-confidence floor: a query that scores below
// 0.5 against every candidate is "not found", never an error.
package match

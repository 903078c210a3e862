// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// KEYWORD RESOLVER
// =============================================================================

// KeywordResolver classifies commands with an ordered keyword cascade, no
// model required. Rules are evaluated in sequence and the first match wins;
// the order matters because the rules overlap ("delete all" must reach the
// clear rule, which sits after the delete rule guarded by "all").
type KeywordResolver struct {
	runner *Runner
}

// NewKeywordResolver creates the deterministic resolver.
func NewKeywordResolver(runner *Runner) *KeywordResolver {
	return &KeywordResolver{runner: runner}
}

// Resolve implements Resolver.
func (k *KeywordResolver) Resolve(ctx context.Context, userID, command string) (Response, error) {
	inv, failText := classify(command)
	if failText != "" {
		return Response{Success: false, Text: failText}, nil
	}

	res, err := k.runner.Execute(ctx, userID, inv)
	if err != nil {
		return Response{}, err
	}
	return res.Response(), nil
}

// =============================================================================
// CLASSIFICATION CASCADE
// =============================================================================

// Keyword phrases stripped from a command to recover the todo text argument.
// Longer phrases come first so that stripping "done" cannot orphan the "as"
// of "as done".
var (
	addPhrases = []string{"add a todo", "add todo", "add"}

	donePhrases = []string{
		"mark as done", "mark done", "as done", "done", "mark",
	}

	undonePhrases = []string{
		"mark as undone", "mark as not done", "mark undone", "mark not done",
		"as undone", "as not done", "undone", "not done", "mark",
	}

	deletePhrases = []string{"delete todo", "delete"}
)

var markCountPattern = regexp.MustCompile(`mark\s+(\d+)`)

// phrasePatterns holds one case-insensitive, word-boundary pattern per
// keyword phrase, compiled once up front.
var phrasePatterns = map[string]*regexp.Regexp{}

func init() {
	for _, set := range [][]string{addPhrases, donePhrases, undonePhrases, deletePhrases} {
		for _, phrase := range set {
			if _, ok := phrasePatterns[phrase]; !ok {
				phrasePatterns[phrase] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
			}
		}
	}
}

// stripPhrases removes the first occurrence of each phrase, matching
// case-insensitively on word boundaries so "saddle" survives stripping
// "add", then trims whitespace and a leading ":" or "-" so
// "add a todo: buy milk" yields "buy milk".
func stripPhrases(command string, phrases []string) string {
	for _, phrase := range phrases {
		if loc := phrasePatterns[phrase].FindStringIndex(command); loc != nil {
			command = command[:loc[0]] + command[loc[1]:]
		}
	}
	command = strings.TrimSpace(command)
	command = strings.TrimLeft(command, ":-")
	return strings.TrimSpace(command)
}

// classify maps a raw command onto a tool invocation. Rules match on a
// lower-cased copy; the argument is extracted from the original string so
// the stored todo keeps the user's casing. A non-empty second return is the
// failure text for a command that was recognized but carried no usable
// argument, or was not recognized at all.
func classify(command string) (Invocation, string) {
	raw := strings.TrimSpace(command)
	cmd := strings.ToLower(raw)

	// Rule 1: add. Broadest rule first; anything mentioning "add" is an
	// add, whatever else it says.
	if strings.Contains(cmd, "add") {
		text := stripPhrases(raw, addPhrases)
		if text == "" {
			return nil, errNoText
		}
		return AddTodo{Text: text}, ""
	}

	hasMark := strings.Contains(cmd, "mark")
	hasUndone := strings.Contains(cmd, "undone") || strings.Contains(cmd, "not done")

	// Rule 2: mark as done. "undone"/"not done" contain "done", so they
	// must be excluded here and handled by rule 3.
	if hasMark && strings.Contains(cmd, "done") && !hasUndone {
		if strings.Contains(cmd, "first") {
			return MarkFirstOrLast{FromEnd: false, Completed: true}, ""
		}
		if strings.Contains(cmd, "last") {
			return MarkFirstOrLast{FromEnd: true, Completed: true}, ""
		}
		if m := markCountPattern.FindStringSubmatch(cmd); m != nil {
			count, err := strconv.Atoi(m[1])
			if err == nil {
				return MarkMultiple{Count: count, FromEnd: strings.Contains(cmd, "last")}, ""
			}
		}

		text := stripPhrases(raw, donePhrases)
		if text == "" {
			return nil, errNoMarkDone
		}
		return MarkTodo{Text: text, Completed: true}, ""
	}

	// Rule 3: mark as undone.
	if hasMark && hasUndone {
		text := stripPhrases(raw, undonePhrases)
		if text == "" {
			return nil, errNoMarkUndone
		}
		return MarkTodo{Text: text, Completed: false}, ""
	}

	// Rule 4: delete one item by text. "delete all" falls through to rule 5.
	// Deleting by position ("delete the last todo") is only reachable
	// through the oracle resolver; the cascade has no rule for it.
	if strings.Contains(cmd, "delete") && !strings.Contains(cmd, "all") {
		text := stripPhrases(raw, deletePhrases)
		if text == "" {
			return nil, errNoDelete
		}
		return DeleteTodo{Text: text}, ""
	}

	// Rule 5: clear everything.
	if strings.Contains(cmd, "clear") || strings.Contains(cmd, "reset") ||
		(strings.Contains(cmd, "delete") && strings.Contains(cmd, "all")) {
		return ClearAll{}, ""
	}

	return nil, errNotRecognized
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package command resolves free-form natural-language commands ("mark the
// last todo as done") into concrete todo mutations.
//
// A Resolver classifies the raw command into one of a fixed set of tool
// invocations and executes it through a Runner. Two resolvers exist: the
// keyword resolver classifies deterministically with an ordered rule
// cascade, and the oracle resolver delegates classification to an external
// language model via tool calling. Both produce the same Response contract.
package command

import "context"

// =============================================================================
// RESOLVER CONTRACT
// =============================================================================

// Response is the uniform outcome of resolving one command. Text carries the
// tool's message on success and a human-readable reason on failure.
type Response struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// Resolver turns a raw command string into an executed todo mutation.
//
// A returned error means an infrastructure fault (store or oracle
// unavailable); every recognized-but-failed command ("Todo not found") is a
// nil-error Response with Success false.
type Resolver interface {
	Resolve(ctx context.Context, userID, command string) (Response, error)
}

// =============================================================================
// USER-FACING TEXTS
// =============================================================================

// Failure reasons surfaced verbatim to the client.
const (
	errNotRecognized = "Command not recognized."
	errTodoNotFound  = "Todo not found"
	errNoTodos       = "No todos found"
	errNoText        = "No todo text provided"
	errNoMarkDone    = "No todo specified to mark as done"
	errNoMarkUndone  = "No todo specified to mark as undone"
	errNoDelete      = "No todo specified to delete"
)

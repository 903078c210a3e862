// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/morganforge/taskpilot/internal/match"
	"github.com/morganforge/taskpilot/internal/store"
)

// =============================================================================
// TOOL INVOCATIONS
// =============================================================================

// Invocation is one classified command: a tool plus its typed arguments.
// The set of implementations is closed; Runner.Execute dispatches on the
// concrete type.
type Invocation interface {
	isInvocation()
}

// AddTodo creates a new todo. Never deduplicates.
type AddTodo struct {
	Text string
}

// MarkTodo resolves Text to an existing todo by fuzzy match and sets its
// completed flag.
type MarkTodo struct {
	Text      string
	Completed bool
}

// MarkFirstOrLast sets the completed flag on the oldest (or, with FromEnd,
// the newest) todo.
type MarkFirstOrLast struct {
	FromEnd   bool
	Completed bool
}

// DeleteTodo resolves Text to an existing todo by fuzzy match and removes it.
type DeleteTodo struct {
	Text string
}

// DeleteFirstOrLast removes the oldest (or newest) todo.
type DeleteFirstOrLast struct {
	FromEnd bool
}

// ClearAll removes every todo the user owns.
type ClearAll struct{}

// MarkMultiple marks up to Count incomplete todos as completed, selected by
// creation order from the front (or, with FromEnd, the back) of the list.
type MarkMultiple struct {
	Count   int
	FromEnd bool
}

func (AddTodo) isInvocation()           {}
func (MarkTodo) isInvocation()          {}
func (MarkFirstOrLast) isInvocation()   {}
func (DeleteTodo) isInvocation()        {}
func (DeleteFirstOrLast) isInvocation() {}
func (ClearAll) isInvocation()          {}
func (MarkMultiple) isInvocation()      {}

// =============================================================================
// TOOL RESULT
// =============================================================================

// Result is the outcome of executing one tool. Exactly one of Message and
// Error is meaningful, selected by Success.
type Result struct {
	Success bool
	Message string
	Error   string
	Item    *store.TodoItem
	Count   int
}

// Text returns the user-facing text for this result.
func (r Result) Text() string {
	if r.Success {
		return r.Message
	}
	return r.Error
}

// Response converts a tool result to the resolver output contract.
func (r Result) Response() Response {
	return Response{Success: r.Success, Text: r.Text()}
}

func failure(text string) Result {
	return Result{Success: false, Error: text}
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes tool invocations against one user's todo collection. The
// store handle is injected at construction; the runner never touches global
// state and never operates across users.
type Runner struct {
	todos   *store.TodoStore
	matcher match.Matcher
}

// NewRunner creates a runner. A nil matcher selects the default
// edit-distance matcher.
func NewRunner(todos *store.TodoStore, matcher match.Matcher) *Runner {
	if matcher == nil {
		matcher = match.NewLevenshteinMatcher()
	}
	return &Runner{todos: todos, matcher: matcher}
}

// Execute runs one invocation for the user. The returned error is reserved
// for infrastructure faults; every per-command failure ("Todo not found") is
// a nil-error Result with Success false.
func (r *Runner) Execute(ctx context.Context, userID string, inv Invocation) (Result, error) {
	switch v := inv.(type) {
	case AddTodo:
		return r.addTodo(ctx, userID, v)
	case MarkTodo:
		return r.markTodo(ctx, userID, v)
	case MarkFirstOrLast:
		return r.markFirstOrLast(ctx, userID, v)
	case DeleteTodo:
		return r.deleteTodo(ctx, userID, v)
	case DeleteFirstOrLast:
		return r.deleteFirstOrLast(ctx, userID, v)
	case ClearAll:
		return r.clearAll(ctx, userID)
	case MarkMultiple:
		return r.markMultiple(ctx, userID, v)
	default:
		return Result{}, fmt.Errorf("unhandled invocation type %T", inv)
	}
}

func (r *Runner) addTodo(ctx context.Context, userID string, v AddTodo) (Result, error) {
	item, err := r.todos.Insert(ctx, userID, v.Text)
	if errors.Is(err, store.ErrEmptyText) {
		return failure(errNoText), nil
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Added: %q", item.Text),
		Item:    &item,
	}, nil
}

// findByText resolves a free-text reference to one of the user's todos.
// The matcher sees the full collection, completed items included, so "mark
// X as undone" can find an already-completed X.
func (r *Runner) findByText(ctx context.Context, userID, text string) (store.TodoItem, bool, error) {
	items, err := r.todos.FindByOwner(ctx, userID)
	if err != nil {
		return store.TodoItem{}, false, err
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	idx, ok := r.matcher.BestMatch(text, texts)
	if !ok {
		return store.TodoItem{}, false, nil
	}
	return items[idx], true, nil
}

func markedMessage(text string, completed bool) string {
	if completed {
		return fmt.Sprintf("Marked %q as done", text)
	}
	return fmt.Sprintf("Marked %q as not done", text)
}

func (r *Runner) markTodo(ctx context.Context, userID string, v MarkTodo) (Result, error) {
	item, ok, err := r.findByText(ctx, userID, v.Text)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failure(errTodoNotFound), nil
	}

	if err := r.todos.SetCompleted(ctx, userID, item.ID, v.Completed); err != nil {
		return Result{}, err
	}
	item.Completed = v.Completed

	return Result{
		Success: true,
		Message: markedMessage(item.Text, v.Completed),
		Item:    &item,
	}, nil
}

// edgeItem returns the oldest (or newest) of the user's todos.
func (r *Runner) edgeItem(ctx context.Context, userID string, fromEnd bool) (store.TodoItem, bool, error) {
	items, err := r.todos.FindSorted(ctx, userID, false, fromEnd, 1)
	if err != nil || len(items) == 0 {
		return store.TodoItem{}, false, err
	}
	return items[0], true, nil
}

func (r *Runner) markFirstOrLast(ctx context.Context, userID string, v MarkFirstOrLast) (Result, error) {
	item, ok, err := r.edgeItem(ctx, userID, v.FromEnd)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failure(errNoTodos), nil
	}

	if err := r.todos.SetCompleted(ctx, userID, item.ID, v.Completed); err != nil {
		return Result{}, err
	}
	item.Completed = v.Completed

	return Result{
		Success: true,
		Message: markedMessage(item.Text, v.Completed),
		Item:    &item,
	}, nil
}

func (r *Runner) deleteTodo(ctx context.Context, userID string, v DeleteTodo) (Result, error) {
	item, ok, err := r.findByText(ctx, userID, v.Text)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failure(errTodoNotFound), nil
	}

	if err := r.todos.DeleteByID(ctx, userID, item.ID); err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %q", item.Text),
		Item:    &item,
	}, nil
}

func (r *Runner) deleteFirstOrLast(ctx context.Context, userID string, v DeleteFirstOrLast) (Result, error) {
	item, ok, err := r.edgeItem(ctx, userID, v.FromEnd)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failure(errNoTodos), nil
	}

	if err := r.todos.DeleteByID(ctx, userID, item.ID); err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %q", item.Text),
		Item:    &item,
	}, nil
}

func (r *Runner) clearAll(ctx context.Context, userID string) (Result, error) {
	n, err := r.todos.DeleteByOwner(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	// Clearing an already-empty list is still a success.
	return Result{
		Success: true,
		Message: "All todos cleared",
		Count:   int(n),
	}, nil
}

func (r *Runner) markMultiple(ctx context.Context, userID string, v MarkMultiple) (Result, error) {
	if v.Count <= 0 {
		// Zero items selected; FindSorted treats limit 0 as unlimited, so
		// short-circuit instead.
		return failure(errNoTodos), nil
	}

	items, err := r.todos.FindSorted(ctx, userID, true, v.FromEnd, v.Count)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return failure(errNoTodos), nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	// One transaction: a batch command applies all-or-nothing.
	if err := r.todos.SetCompletedMany(ctx, userID, ids); err != nil {
		return Result{}, err
	}

	// Fewer eligible items than requested is partial fulfillment, not an
	// error; report the actual count.
	return Result{
		Success: true,
		Message: fmt.Sprintf("Marked %d todos as done", len(items)),
		Count:   len(items),
	}, nil
}

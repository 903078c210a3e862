// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore opens a store in a temporary directory and registers
// cleanup. It also creates a test user and returns its id.
func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "taskpilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	user, err := s.Users().Create(context.Background(), "test@example.com", "hash")
	require.NoError(t, err)

	return s, user.ID
}

func TestTodoStore_InsertAndFind(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	a, err := todos.Insert(ctx, userID, "Buy groceries")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.Completed)

	_, err = todos.Insert(ctx, userID, "Walk dog")
	require.NoError(t, err)

	items, err := todos.FindByOwner(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Buy groceries", items[0].Text)
	assert.Equal(t, "Walk dog", items[1].Text)
}

func TestTodoStore_InsertEmptyText(t *testing.T) {
	s, userID := openTestStore(t)

	_, err := s.Todos().Insert(context.Background(), userID, "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestTodoStore_FindSorted(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	for _, text := range []string{"A", "B", "C"} {
		_, err := todos.Insert(ctx, userID, text)
		require.NoError(t, err)
	}

	first, err := todos.FindSorted(ctx, userID, false, false, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "A", first[0].Text)

	last, err := todos.FindSorted(ctx, userID, false, true, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "C", last[0].Text)
}

func TestTodoStore_FindSorted_OnlyIncomplete(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	a, err := todos.Insert(ctx, userID, "A")
	require.NoError(t, err)
	_, err = todos.Insert(ctx, userID, "B")
	require.NoError(t, err)

	require.NoError(t, todos.SetCompleted(ctx, userID, a.ID, true))

	items, err := todos.FindSorted(ctx, userID, true, false, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].Text)
}

func TestTodoStore_SetCompleted(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	item, err := todos.Insert(ctx, userID, "Buy milk")
	require.NoError(t, err)

	require.NoError(t, todos.SetCompleted(ctx, userID, item.ID, true))

	got, err := todos.Get(ctx, userID, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	// Re-applying the same state is a no-op success.
	require.NoError(t, todos.SetCompleted(ctx, userID, item.ID, true))
}

func TestTodoStore_SetCompletedMany_Atomic(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	a, err := todos.Insert(ctx, userID, "A")
	require.NoError(t, err)
	b, err := todos.Insert(ctx, userID, "B")
	require.NoError(t, err)

	// One bad id rolls back the whole batch.
	err = todos.SetCompletedMany(ctx, userID, []string{a.ID, "no-such-id", b.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	items, err := todos.FindByOwner(ctx, userID)
	require.NoError(t, err)
	for _, item := range items {
		assert.False(t, item.Completed, "batch must be all-or-nothing")
	}

	// The clean batch applies.
	require.NoError(t, todos.SetCompletedMany(ctx, userID, []string{a.ID, b.ID}))
	items, err = todos.FindByOwner(ctx, userID)
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, item.Completed)
	}
}

func TestTodoStore_DeleteByID(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	item, err := todos.Insert(ctx, userID, "Buy milk")
	require.NoError(t, err)

	require.NoError(t, todos.DeleteByID(ctx, userID, item.ID))
	assert.ErrorIs(t, todos.DeleteByID(ctx, userID, item.ID), ErrNotFound)
}

func TestTodoStore_DeleteByOwner_Idempotent(t *testing.T) {
	s, userID := openTestStore(t)
	todos := s.Todos()
	ctx := context.Background()

	_, err := todos.Insert(ctx, userID, "A")
	require.NoError(t, err)
	_, err = todos.Insert(ctx, userID, "B")
	require.NoError(t, err)

	n, err := todos.DeleteByOwner(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// Second clear acts on an empty collection and still succeeds.
	n, err = todos.DeleteByOwner(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestTodoStore_OwnerScoping(t *testing.T) {
	s, userID := openTestStore(t)
	ctx := context.Background()

	other, err := s.Users().Create(ctx, "other@example.com", "hash")
	require.NoError(t, err)

	item, err := s.Todos().Insert(ctx, userID, "Mine")
	require.NoError(t, err)

	// Another user cannot see, mutate, or delete it.
	_, err = s.Todos().Get(ctx, other.ID, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Todos().SetCompleted(ctx, other.ID, item.ID, true), ErrNotFound)
	assert.ErrorIs(t, s.Todos().DeleteByID(ctx, other.ID, item.ID), ErrNotFound)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TODO ITEM
// =============================================================================

// TodoItem is a single to-do entry owned by a user.
//
// CreatedAt is immutable after insert and defines the "first"/"last"
// ordering of a user's list. Ties on CreatedAt are broken by insert order
// (rowid), so ordering is total.
type TodoItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// TODO STORE
// =============================================================================

// TodoStore is the todo collection. All operations are scoped to a single
// owner; nothing here reads or writes across users.
type TodoStore struct {
	db *sql.DB
}

const todoColumns = "id, user_id, text, completed, created_at"

// scanTodo reads one row into a TodoItem.
func scanTodo(row interface{ Scan(...any) error }) (TodoItem, error) {
	var item TodoItem
	var completed int
	var createdNs int64

	if err := row.Scan(&item.ID, &item.UserID, &item.Text, &completed, &createdNs); err != nil {
		return TodoItem{}, err
	}

	item.Completed = completed != 0
	item.CreatedAt = time.Unix(0, createdNs)
	return item, nil
}

// Insert creates a new todo for the owner and returns it.
// Text must be non-empty after trimming.
func (s *TodoStore) Insert(ctx context.Context, userID, text string) (TodoItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TodoItem{}, ErrEmptyText
	}

	item := TodoItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		Completed: false,
		CreatedAt: time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO todos (id, user_id, text, completed, created_at) VALUES (?, ?, ?, 0, ?)",
		item.ID, item.UserID, item.Text, item.CreatedAt.UnixNano(),
	)
	if err != nil {
		return TodoItem{}, fmt.Errorf("failed to insert todo: %w", err)
	}

	return item, nil
}

// FindByOwner returns all of the owner's todos ordered by creation time
// (oldest first).
func (s *TodoStore) FindByOwner(ctx context.Context, userID string) ([]TodoItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE user_id = ? ORDER BY created_at, rowid",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	var items []TodoItem
	for rows.Next() {
		item, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindSorted returns up to limit of the owner's todos ordered by creation
// time, oldest first unless fromEnd is set. When onlyIncomplete is set,
// completed items are excluded. limit <= 0 means no limit.
func (s *TodoStore) FindSorted(ctx context.Context, userID string, onlyIncomplete, fromEnd bool, limit int) ([]TodoItem, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE user_id = ?"
	if onlyIncomplete {
		query += " AND completed = 0"
	}
	if fromEnd {
		query += " ORDER BY created_at DESC, rowid DESC"
	} else {
		query += " ORDER BY created_at, rowid"
	}

	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	var items []TodoItem
	for rows.Next() {
		item, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns a single todo by id, scoped to the owner.
func (s *TodoStore) Get(ctx context.Context, userID, id string) (TodoItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = ? AND user_id = ?", id, userID)

	item, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return TodoItem{}, ErrNotFound
	}
	if err != nil {
		return TodoItem{}, fmt.Errorf("failed to get todo: %w", err)
	}
	return item, nil
}

// SetCompleted updates the completed flag of one todo.
// Setting a flag to its current value is a no-op success.
func (s *TodoStore) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE todos SET completed = ? WHERE id = ? AND user_id = ?",
		boolToInt(completed), id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCompletedMany marks a set of the owner's todos as completed in a
// single transaction, so a batch command is applied all-or-nothing.
func (s *TodoStore) SetCompletedMany(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE todos SET completed = 1 WHERE id = ? AND user_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("failed to update todo %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("todo %s: %w", id, ErrNotFound)
		}
	}

	return tx.Commit()
}

// UpdateText replaces the text of one todo. Text must be non-empty.
func (s *TodoStore) UpdateText(ctx context.Context, userID, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE todos SET text = ? WHERE id = ? AND user_id = ?", text, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update todo text: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes one todo, scoped to the owner.
func (s *TodoStore) DeleteByID(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM todos WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByOwner removes all of the owner's todos and returns how many were
// removed. Deleting an already-empty collection is a success with count 0.
func (s *TodoStore) DeleteByOwner(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear todos: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

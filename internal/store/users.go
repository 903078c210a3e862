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
// USER
// =============================================================================

// User is a registered account. PasswordHash is a bcrypt digest; the plain
// password never touches the store.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// =============================================================================
// USER STORE
// =============================================================================

// UserStore is the user collection.
type UserStore struct {
	db *sql.DB
}

// Create inserts a new user. Email is stored lower-cased and trimmed; a
// duplicate email returns ErrDuplicateEmail.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (User, error) {
	user := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByEmail looks up a user by email (case-insensitive).
func (s *UserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	)

	var user User
	var createdNs int64
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdNs)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to find user: %w", err)
	}

	user.CreatedAt = time.Unix(0, createdNs)
	return user, nil
}

// Get looks up a user by id.
func (s *UserStore) Get(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id)

	var user User
	var createdNs int64
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdNs)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt = time.Unix(0, createdNs)
	return user, nil
}

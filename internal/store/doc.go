// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides document persistence for users and todo items.
//
// Backed by SQLite (pure Go driver). The Store handle is opened and closed
// by the process entry point and passed to the components that need it;
// nothing in this package holds process-wide state.
package store

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the taskpilot HTTP API.
//
// Endpoints:
//   - POST /api/auth/signup      - Create an account and start a session
//   - POST /api/auth/signin      - Start a session
//   - POST /api/auth/signout     - End the session
//   - GET  /api/todos            - List the user's todos
//   - POST /api/todos            - Create a todo
//   - PUT  /api/todos/{id}       - Update a todo's text or completed flag
//   - DELETE /api/todos/{id}     - Delete a todo
//   - POST /api/todos/command    - Resolve a natural-language command
//   - GET  /health               - Health check
//   - GET  /stats                - Usage statistics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morganforge/taskpilot/internal/auth"
	"github.com/morganforge/taskpilot/internal/command"
	"github.com/morganforge/taskpilot/internal/oracle"
	"github.com/morganforge/taskpilot/internal/store"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize caps request bodies (64KB is generous for todos).
	MaxRequestBodySize = 64 * 1024

	// MaxCommandLength caps the natural-language command string.
	MaxCommandLength = 2000

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks server usage statistics.
type ServerStats struct {
	TotalRequests    int64
	CommandsResolved int64
	CommandsFailed   int64
	Signups          int64
	StartTime        time.Time
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// RecordRequest counts one HTTP request.
func (s *ServerStats) RecordRequest() {
	atomic.AddInt64(&s.TotalRequests, 1)
}

// RecordCommand counts one resolved command by outcome.
func (s *ServerStats) RecordCommand(success bool) {
	if success {
		atomic.AddInt64(&s.CommandsResolved, 1)
	} else {
		atomic.AddInt64(&s.CommandsFailed, 1)
	}
}

// RecordSignup counts one account creation.
func (s *ServerStats) RecordSignup() {
	atomic.AddInt64(&s.Signups, 1)
}

// Uptime returns the server uptime duration.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the taskpilot HTTP API server.
type Server struct {
	addr   string
	router *http.ServeMux
	server *http.Server

	store    *store.Store
	sessions *auth.Sessions
	resolver command.Resolver
	oracle   *oracle.Client
	stats    *ServerStats
	limiter  *RateLimiter
	cors     *CORSConfig

	mu sync.RWMutex
}

// NewServer creates a new Server. addr may be empty for the default.
func NewServer(addr string, st *store.Store, sessions *auth.Sessions, resolver command.Resolver) *Server {
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		addr:     addr,
		router:   http.NewServeMux(),
		store:    st,
		sessions: sessions,
		resolver: resolver,
		stats:    NewServerStats(),
		limiter:  DefaultRateLimiter(),
		cors:     DefaultCORSConfig(),
	}

	s.setupRoutes()
	return s
}

// WithOracleClient sets the oracle client used for health reporting.
func (s *Server) WithOracleClient(client *oracle.Client) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oracle = client
	return s
}

// WithRateLimiter sets a custom rate limiter.
func (s *Server) WithRateLimiter(limiter *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = limiter
	return s
}

// WithCORS sets a custom CORS configuration.
func (s *Server) WithCORS(cors *CORSConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cors = cors
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Auth endpoints
	s.router.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.router.HandleFunc("POST /api/auth/signin", s.handleSignin)
	s.router.HandleFunc("POST /api/auth/signout", s.handleSignout)

	// Todo CRUD endpoints
	s.router.HandleFunc("GET /api/todos", s.requireUser(s.handleListTodos))
	s.router.HandleFunc("POST /api/todos", s.requireUser(s.handleCreateTodo))
	s.router.HandleFunc("PUT /api/todos/{id}", s.requireUser(s.handleUpdateTodo))
	s.router.HandleFunc("DELETE /api/todos/{id}", s.requireUser(s.handleDeleteTodo))

	// Natural-language command endpoint
	s.router.HandleFunc("POST /api/todos/command", s.requireUser(s.handleCommand))

	// Health and stats endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// userHandler is a handler that runs with a resolved user id.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// requireUser resolves the session cookie before the handler runs.
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.sessions.FromRequest(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(w, r, claims.UserID)
	}
}

// ============================================================================
// AUTH HANDLERS
// ============================================================================

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// handleSignup handles POST /api/auth/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := auth.ValidateEmail(req.Email); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("SIGNUP FAILED | err=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user, err := s.store.Users().Create(r.Context(), req.Email, hash)
	if errors.Is(err, store.ErrDuplicateEmail) {
		s.writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		log.Printf("SIGNUP FAILED | err=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if err := s.startSession(w, user); err != nil {
		log.Printf("SIGNUP SESSION FAILED | err=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	s.stats.RecordSignup()
	log.Printf("SIGNUP | user=%s", user.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"user": userResponse{ID: user.ID, Email: user.Email},
	})
}

// handleSignin handles POST /api/auth/signin.
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	user, err := s.store.Users().FindByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		// Same response as a wrong password; do not reveal which accounts exist.
		s.writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		log.Printf("SIGNIN FAILED | err=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := s.startSession(w, user); err != nil {
		log.Printf("SIGNIN SESSION FAILED | err=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	log.Printf("SIGNIN | user=%s", user.ID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{ID: user.ID, Email: user.Email},
	})
}

// handleSignout handles POST /api/auth/signout.
func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) startSession(w http.ResponseWriter, user store.User) error {
	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return err
	}
	s.sessions.SetCookie(w, token)
	return nil
}

// ============================================================================
// TODO CRUD HANDLERS
// ============================================================================

// handleListTodos handles GET /api/todos.
func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := s.store.Todos().FindByOwner(r.Context(), userID)
	if err != nil {
		log.Printf("TODOS LIST FAILED | user=%s err=%v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load todos")
		return
	}
	if items == nil {
		items = []store.TodoItem{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"todos": items})
}

// handleCreateTodo handles POST /api/todos.
func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	item, err := s.store.Todos().Insert(r.Context(), userID, req.Text)
	if errors.Is(err, store.ErrEmptyText) {
		s.writeError(w, http.StatusBadRequest, "Todo text is required")
		return
	}
	if err != nil {
		log.Printf("TODO CREATE FAILED | user=%s err=%v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create todo")
		return
	}

	s.writeJSON(w, http.StatusCreated, item)
}

// handleUpdateTodo handles PUT /api/todos/{id}. Text and completed are both
// optional; absent fields are left unchanged.
func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")

	var req struct {
		Text      *string `json:"text"`
		Completed *bool   `json:"completed"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	todos := s.store.Todos()

	if req.Text != nil {
		err := todos.UpdateText(r.Context(), userID, id, *req.Text)
		if errors.Is(err, store.ErrEmptyText) {
			s.writeError(w, http.StatusBadRequest, "Todo text is required")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Todo not found")
			return
		}
		if err != nil {
			log.Printf("TODO UPDATE FAILED | user=%s id=%s err=%v", userID, id, err)
			s.writeError(w, http.StatusInternalServerError, "Failed to update todo")
			return
		}
	}

	if req.Completed != nil {
		err := todos.SetCompleted(r.Context(), userID, id, *req.Completed)
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Todo not found")
			return
		}
		if err != nil {
			log.Printf("TODO UPDATE FAILED | user=%s id=%s err=%v", userID, id, err)
			s.writeError(w, http.StatusInternalServerError, "Failed to update todo")
			return
		}
	}

	item, err := todos.Get(r.Context(), userID, id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		log.Printf("TODO UPDATE FAILED | user=%s id=%s err=%v", userID, id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to update todo")
		return
	}

	s.writeJSON(w, http.StatusOK, item)
}

// handleDeleteTodo handles DELETE /api/todos/{id}.
func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")

	err := s.store.Todos().DeleteByID(r.Context(), userID, id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		log.Printf("TODO DELETE FAILED | user=%s id=%s err=%v", userID, id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete todo")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ============================================================================
// COMMAND HANDLER
// ============================================================================

// commandResponse is the uniform command endpoint payload. Recognized but
// failed commands ("Todo not found") are a 200 with success false; HTTP
// error statuses are reserved for malformed requests and internal faults.
type commandResponse struct {
	Result  commandResult `json:"result"`
	Success bool          `json:"success"`
}

type commandResult struct {
	Text string `json:"text"`
}

// handleCommand handles POST /api/todos/command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Command any `json:"command"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	cmd, ok := req.Command.(string)
	if !ok || cmd == "" {
		s.writeError(w, http.StatusBadRequest, "Command is required and must be a string")
		return
	}
	if len(cmd) > MaxCommandLength {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Command exceeds maximum length of %d", MaxCommandLength))
		return
	}

	start := time.Now()
	resp, err := s.resolver.Resolve(r.Context(), userID, cmd)
	if err != nil {
		// Infrastructure fault. Full details stay in the log; the client
		// gets a generic message.
		log.Printf("COMMAND FAILED | user=%s err=%v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to process command")
		return
	}

	s.stats.RecordCommand(resp.Success)
	log.Printf("COMMAND | user=%s success=%t latency=%dms", userID, resp.Success, time.Since(start).Milliseconds())

	s.writeJSON(w, http.StatusOK, commandResponse{
		Result:  commandResult{Text: resp.Text},
		Success: resp.Success,
	})
}

// ============================================================================
// HEALTH AND STATS HANDLERS
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	OracleStatus string `json:"oracle_status"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:  "ok",
		Version: Version,
	}

	s.mu.RLock()
	oracleClient := s.oracle
	s.mu.RUnlock()

	if oracleClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := oracleClient.CheckRunning(ctx); err == nil {
			health.OracleStatus = "ok"
		} else {
			// The keyword resolver works without the oracle, so this is a
			// degradation rather than an outage.
			health.OracleStatus = "unavailable"
			health.Status = "degraded"
		}
	} else {
		health.OracleStatus = "not_configured"
	}

	s.writeJSON(w, http.StatusOK, health)
}

// StatsResponse represents the usage statistics response.
type StatsResponse struct {
	TotalRequests    int64 `json:"total_requests"`
	CommandsResolved int64 `json:"commands_resolved"`
	CommandsFailed   int64 `json:"commands_failed"`
	Signups          int64 `json:"signups"`
	UptimeSeconds    int64 `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatsResponse{
		TotalRequests:    atomic.LoadInt64(&s.stats.TotalRequests),
		CommandsResolved: atomic.LoadInt64(&s.stats.CommandsResolved),
		CommandsFailed:   atomic.LoadInt64(&s.stats.CommandsFailed),
		Signups:          atomic.LoadInt64(&s.stats.Signups),
		UptimeSeconds:    int64(s.stats.Uptime().Seconds()),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Handler returns the fully wired handler, middleware included. Exposed for
// tests.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default(), s.stats),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(s.limiter),
	)(s.router)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER START | addr=%s version=%s", s.addr, Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Printf("SERVER SHUTDOWN | uptime=%s", s.stats.Uptime().Round(time.Second))
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// decodeBody decodes a JSON request body with a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@b.co", "alice@example.com", "x.y@sub.domain.org"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) = %v, want nil", email, err)
		}
	}

	invalid := []string{"", "nodomain", "a@b", "spaces in@mail.com", "@example.com"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q) = nil, want error", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil {
		t.Error("5-char password should be rejected")
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("6-char password should be accepted, got %v", err)
	}
}

// =============================================================================
// HASHING TESTS
// =============================================================================

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "hunter22" {
		t.Error("hash must not equal the plain password")
	}

	if err := CheckPassword(hash, "hunter22"); err != nil {
		t.Errorf("CheckPassword with correct password = %v, want nil", err)
	}

	if err := CheckPassword(hash, "wrong"); err != ErrInvalidCredentials {
		t.Errorf("CheckPassword with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSessions_IssueAndVerify(t *testing.T) {
	s := NewSessions("test-secret", false)

	token, err := s.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", claims.Email)
	}
}

func TestSessions_RejectsWrongSecret(t *testing.T) {
	token, err := NewSessions("secret-a", false).Issue("user-1", "a@b.co")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := NewSessions("secret-b", false).Verify(token); err != ErrNoSession {
		t.Errorf("Verify with wrong secret = %v, want ErrNoSession", err)
	}
}

func TestSessions_RejectsExpired(t *testing.T) {
	s := NewSessions("test-secret", false)
	s.lifetime = -time.Minute

	token, err := s.Issue("user-1", "a@b.co")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := s.Verify(token); err != ErrNoSession {
		t.Errorf("Verify of expired token = %v, want ErrNoSession", err)
	}
}

func TestSessions_RejectsGarbage(t *testing.T) {
	s := NewSessions("test-secret", false)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := s.Verify(token); err != ErrNoSession {
			t.Errorf("Verify(%q) = %v, want ErrNoSession", token, err)
		}
	}
}

// =============================================================================
// COOKIE TESTS
// =============================================================================

func TestSessions_CookieRoundTrip(t *testing.T) {
	s := NewSessions("test-secret", false)

	token, err := s.Issue("user-1", "a@b.co")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	rec := httptest.NewRecorder()
	s.SetCookie(rec, token)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if cookies[0].SameSite != http.SameSiteStrictMode {
		t.Error("session cookie must be SameSite=Strict")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	claims, err := s.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
}

func TestSessions_FromRequest_NoCookie(t *testing.T) {
	s := NewSessions("test-secret", false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := s.FromRequest(req); err != ErrNoSession {
		t.Errorf("FromRequest without cookie = %v, want ErrNoSession", err)
	}
}

func TestSessions_ClearCookie(t *testing.T) {
	s := NewSessions("test-secret", false)

	rec := httptest.NewRecorder()
	s.ClearCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Error("clearing must set a negative MaxAge")
	}
}

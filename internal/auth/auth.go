// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides password hashing and session token management.
//
// Passwords are hashed with bcrypt. Sessions are HS256-signed JWTs carried
// in an HttpOnly cookie; every request to a protected endpoint resolves the
// cookie to a user id before touching persistence.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// CookieName is the session cookie name.
	CookieName = "token"

	// TokenLifetime is how long an issued session token remains valid.
	TokenLifetime = 7 * 24 * time.Hour

	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 6

	// bcryptCost matches the work factor used when accounts were first
	// provisioned; changing it invalidates nothing but slows new hashes.
	bcryptCost = 10
)

// emailPattern is deliberately loose: one @, no whitespace, a dot in the
// domain. Real validation happens when mail is delivered.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrPasswordTooShort is returned when a password is below the minimum length.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

	// ErrInvalidCredentials is returned when email/password verification fails.
	// The same error covers unknown email and wrong password so responses do
	// not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNoSession is returned when a request carries no usable session token.
	ErrNoSession = errors.New("no valid session")
)

// =============================================================================
// VALIDATION AND HASHING
// =============================================================================

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword checks the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against its stored bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// Claims is the JWT payload for a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies session tokens with a shared HMAC secret.
type Sessions struct {
	secret   []byte
	lifetime time.Duration
	secure   bool
}

// NewSessions creates a session manager. secure controls the cookie Secure
// flag and should be true whenever the service is reached over HTTPS.
func NewSessions(secret string, secure bool) *Sessions {
	return &Sessions{
		secret:   []byte(secret),
		lifetime: TokenLifetime,
		secure:   secure,
	}
}

// Issue creates a signed session token for the user.
func (s *Sessions) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *Sessions) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrNoSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrNoSession
	}
	return claims, nil
}

// =============================================================================
// COOKIES
// =============================================================================

// SetCookie attaches the session token to the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// FromRequest resolves the session cookie on a request to its claims.
func (s *Sessions) FromRequest(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return s.Verify(cookie.Value)
}

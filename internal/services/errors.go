package services

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Common service errors
var (
	// ErrUserNotFound indicates that no user matches the given id or email
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates that another user already registered this email
	ErrEmailTaken = errors.New("email is already registered")

	// ErrUsernameTaken indicates that another user already uses this username
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials indicates a password mismatch
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProductNotFound indicates that no product matches the given id
	ErrProductNotFound = errors.New("product not found")
)

// ValidationError lists every field problem found in an input.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// isUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

// userConflict maps a unique violation on the users table to the matching sentinel.
func userConflict(err error) error {
	if strings.Contains(err.Error(), "users.username") {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

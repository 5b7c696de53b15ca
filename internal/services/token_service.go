package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/isdelr/catalog-api/internal/models"
)

// RevocationWindow is how long a logged-out token stays on the denylist.
const RevocationWindow = 24 * time.Hour

// TokenServiceProvider defines the interface for the token denylist.
type TokenServiceProvider interface {
	// RevokeToken adds token to the denylist until expiresAt. Revoking twice is not an error.
	RevokeToken(ctx context.Context, token string, expiresAt time.Time) error
	// IsTokenRevoked reports whether token is on the denylist, whatever its recorded expiry.
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
	// PurgeExpiredTokens removes entries whose expiry has passed and returns how many went.
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// TokenService keeps revoked tokens in the revoked_tokens table.
type TokenService struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(db *sql.DB) *TokenService {
	return &TokenService{db: db, now: time.Now}
}

// RevokeToken stores token. A repeated revocation keeps the later expiry.
func (s *TokenService) RevokeToken(ctx context.Context, token string, expiresAt time.Time) error {
	entry := models.RevokedToken{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Truncate(time.Second),
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO revoked_tokens (token, expires_at, created_at) VALUES (?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`,
		entry.Token, entry.ExpiresAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether token has been revoked.
func (s *TokenService) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM revoked_tokens WHERE token = ? LIMIT 1", token).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurgeExpiredTokens deletes entries whose expiry is in the past.
func (s *TokenService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?",
		s.now().UTC().Truncate(time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Messages returned by the gate. Clients match on these.
const (
	MsgNoToken      = "Access denied. No token provided."
	MsgTokenRevoked = "Token is revoked."
	MsgInvalidToken = "Invalid or expired token."
)

type contextKey string

const identityKey = contextKey("identity")

// RevocationChecker reports whether a token has been revoked.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

// Gate admits requests that carry a valid, unrevoked bearer token.
type Gate struct {
	issuer  *TokenIssuer
	revoked RevocationChecker
}

// NewGate creates a Gate that verifies with issuer and checks revocations against revoked.
func NewGate(issuer *TokenIssuer, revoked RevocationChecker) *Gate {
	return &Gate{issuer: issuer, revoked: revoked}
}

// Middleware protects the wrapped handler.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Extract the bearer token
		tokenStr, ok := BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, MsgNoToken)
			return
		}

		// 2. Reject revoked tokens before spending time on the signature
		revoked, err := g.revoked.IsTokenRevoked(r.Context(), tokenStr)
		if err != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to check token revocation")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if revoked {
			writeError(w, http.StatusForbidden, MsgTokenRevoked)
			return
		}

		// 3. Verify signature and expiry
		identity, err := g.issuer.Verify(tokenStr)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				log.Debug().Str("path", r.URL.Path).Msg("Expired token rejected")
			}
			writeError(w, http.StatusForbidden, MsgInvalidToken)
			return
		}

		// 4. Pass the identity down via context
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok && identity != nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}

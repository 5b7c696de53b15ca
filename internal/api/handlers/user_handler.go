package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/isdelr/catalog-api/internal/auth"
	"github.com/isdelr/catalog-api/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for account management.
type UserHandler struct {
	service services.UserServiceProvider
	tokens  services.TokenServiceProvider
	issuer  *auth.TokenIssuer
	rs      Responder
	now     func() time.Time
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, tokens services.TokenServiceProvider, issuer *auth.TokenIssuer, rs Responder) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, issuer: issuer, rs: rs, now: time.Now}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload services.RegisterInput
	if err := decodeJSON(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload)
	if err != nil {
		if verr, ok := asValidation(err); ok {
			respondValidation(w, "Validation failed", verr)
			return
		}
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			respondError(w, http.StatusBadRequest, "Email is already registered")
		case errors.Is(err, services.ErrUsernameTaken):
			respondError(w, http.StatusBadRequest, "Username is already taken")
		default:
			log.Error().Err(err).Msg("Failed to register user")
			h.rs.Internal(w, err)
		}
		return
	}

	respondData(w, http.StatusCreated, map[string]string{
		"email":    user.Email,
		"username": user.Username,
	})
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var problems []string
	if payload.Email == "" {
		problems = append(problems, "email is required")
	}
	if payload.Password == "" {
		problems = append(problems, "password is required")
	}
	if len(problems) > 0 {
		respondValidation(w, "Validation failed", &services.ValidationError{Problems: problems})
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "Invalid credentials")
		case errors.Is(err, services.ErrInvalidCredentials):
			log.Warn().Str("email", services.NormalizeEmail(payload.Email)).Msg("Failed authentication attempt")
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			log.Error().Err(err).Msg("Failed to authenticate user")
			h.rs.Internal(w, err)
		}
		return
	}

	token, _, err := h.issuer.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		h.rs.Internal(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
	})
}

// Logout revokes the bearer token sent with the request.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Token not provided")
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), token, h.now().Add(services.RevocationWindow)); err != nil {
		log.Error().Err(err).Msg("Failed to revoke token")
		h.rs.Internal(w, err)
		return
	}

	respondMessage(w, http.StatusOK, "Logged out successfully")
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		h.userError(w, err, identity.UserID, "Failed to load user")
		return
	}

	respondData(w, http.StatusOK, user)
}

// Update handles updating the current user's profile information.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var payload services.UserUpdate
	if err := decodeJSON(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.UpdateUser(r.Context(), identity.UserID, payload)
	if err != nil {
		if verr, ok := asValidation(err); ok {
			respondValidation(w, "Validation failed", verr)
			return
		}
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			respondError(w, http.StatusBadRequest, "Email is already registered")
		case errors.Is(err, services.ErrUsernameTaken):
			respondError(w, http.StatusBadRequest, "Username is already taken")
		default:
			h.userError(w, err, identity.UserID, "Failed to update user")
		}
		return
	}

	respondData(w, http.StatusOK, user)
}

// ChangePassword handles changing the current user's password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var payload services.PasswordChange
	if err := decodeJSON(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdatePassword(r.Context(), identity.UserID, payload); err != nil {
		if verr, ok := asValidation(err); ok {
			respondValidation(w, "Validation failed", verr)
			return
		}
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}
		h.userError(w, err, identity.UserID, "Failed to change password")
		return
	}

	respondMessage(w, http.StatusOK, "Password updated successfully")
}

// Delete handles the permanent deletion of the current user's account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), identity.UserID); err != nil {
		h.userError(w, err, identity.UserID, "Failed to delete user")
		return
	}

	respondMessage(w, http.StatusOK, "User account deleted successfully")
}

func (h *UserHandler) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		log.Error().Str("path", r.URL.Path).Msg("Could not retrieve identity from context")
		h.rs.Internal(w, errors.New("missing identity"))
		return nil, false
	}
	return identity, true
}

func (h *UserHandler) userError(w http.ResponseWriter, err error, userID, msg string) {
	if errors.Is(err, services.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	log.Error().Err(err).Str("user_id", userID).Msg(msg)
	h.rs.Internal(w, err)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/catalog-api/internal/auth"
	"github.com/isdelr/catalog-api/internal/models"
)

// RegisterInput is the payload accepted when creating an account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Username string `json:"username" validate:"required,min=3,max=32"`
}

// UserUpdate carries the profile fields to change. Nil fields are left as they are.
type UserUpdate struct {
	Email    *string `json:"email" validate:"omitnil,email,max=254"`
	Username *string `json:"username" validate:"omitnil,min=3,max=32"`
}

// PasswordChange is the payload for replacing a user's password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, input RegisterInput) (models.User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error)
	UpdatePassword(ctx context.Context, id string, change PasswordChange) error
	DeleteUser(ctx context.Context, id string) error
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db     *sql.DB
	hasher *auth.PasswordHasher
	events EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, hasher *auth.PasswordHasher, events EventServiceProvider) *UserService {
	return &UserService{db: db, hasher: hasher, events: events}
}

const userColumns = "id, email, username, password_hash, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// GetUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormalizeEmail(email))
	return scanUser(row)
}

// CreateUser validates the input, hashes the password and stores a new user.
// Duplicate emails and usernames are rejected with ErrEmailTaken and ErrUsernameTaken,
// including when two registrations race past the existence check.
func (s *UserService) CreateUser(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Email = NormalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	if err := validateStruct(input); err != nil {
		return models.User{}, err
	}

	if taken, err := s.exists(ctx, "email", input.Email, ""); err != nil {
		return models.User{}, err
	} else if taken {
		return models.User{}, ErrEmailTaken
	}
	if taken, err := s.exists(ctx, "username", input.Username, ""); err != nil {
		return models.User{}, err
	} else if taken {
		return models.User{}, ErrUsernameTaken
	}

	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, err
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, userConflict(err)
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	recordEvent(ctx, s.events, "user.register", LevelInfo, fmt.Sprintf("User '%s' registered.", user.Username), user.ID)

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// UpdateUser changes only the supplied profile fields.
func (s *UserService) UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error) {
	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		update.Email = &email
	}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		update.Username = &username
	}
	if err := validateStruct(update); err != nil {
		return models.User{}, err
	}

	if update.Email != nil {
		if taken, err := s.exists(ctx, "email", *update.Email, id); err != nil {
			return models.User{}, err
		} else if taken {
			return models.User{}, ErrEmailTaken
		}
	}
	if update.Username != nil {
		if taken, err := s.exists(ctx, "username", *update.Username, id); err != nil {
			return models.User{}, err
		} else if taken {
			return models.User{}, ErrUsernameTaken
		}
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = COALESCE(?, email), username = COALESCE(?, username), updated_at = ? WHERE id = ?",
		nullString(update.Email), nullString(update.Username), time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, userConflict(err)
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.User{}, err
	} else if n == 0 {
		return models.User{}, ErrUserNotFound
	}

	return s.GetUserByID(ctx, id)
}

// UpdatePassword verifies the current password, then hashes and sets a new password for a user.
func (s *UserService) UpdatePassword(ctx context.Context, id string, change PasswordChange) error {
	if err := validateStruct(change); err != nil {
		return err
	}

	var digest string
	err := s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", id).Scan(&digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	// Check if the current password is correct
	if !s.hasher.Verify(change.CurrentPassword, digest) {
		return ErrInvalidCredentials
	}

	hashedPassword, err := s.hasher.Hash(change.NewPassword)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		hashedPassword, time.Now().UTC(), id)
	return err
}

// DeleteUser removes a user from the database.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}

	recordEvent(ctx, s.events, "user.delete", LevelWarn, "User account deleted.", id)
	return nil
}

// AuthenticateUser verifies a user's credentials.
// It returns ErrUserNotFound for an unknown email and ErrInvalidCredentials for a wrong password.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// exists reports whether another user (not exceptID) already holds value in column.
func (s *UserService) exists(ctx context.Context, column, value, exceptID string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE "+column+" = ? AND id <> ? LIMIT 1", value, exceptID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopcore/ecommerce-api/internal/models"
)

// Errors returned by UserStore implementations.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordConflict = errors.New("record conflicts with a unique constraint")
)

// ConflictError is a duplicate-key rejection raised by the store.
// Field is "email" or "username" when the store can tell which constraint fired.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrRecordConflict.Error()
	}
	return ErrRecordConflict.Error() + ": " + e.Field
}

func (e *ConflictError) Unwrap() error {
	return ErrRecordConflict
}

// UserStore persists user records. Implementations must enforce uniqueness of
// username and email across active and inactive records.
type UserStore interface {
	// Create inserts the user and fills ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, user *models.User) error

	// GetByID returns the user regardless of IsActive.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetActiveByEmail returns the active user with the given email.
	GetActiveByEmail(ctx context.Context, email string) (*models.User, error)

	// FindTakenCredential returns "email" or "username" when another record
	// (excluding excludeID) already uses it, or "" when both are free.
	FindTakenCredential(ctx context.Context, username, email string, excludeID uuid.UUID) (string, error)

	// ListActive returns active users newest first and the total active count.
	ListActive(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// The writes below only touch active records and return ErrRecordNotFound
	// when the record is missing or already inactive. None of them can set
	// IsActive back to true.

	// UpdateProfile persists username and email and fills UpdatedAt.
	UpdateProfile(ctx context.Context, user *models.User) error

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// Deactivate soft-deletes the record.
	Deactivate(ctx context.Context, id uuid.UUID) error

	// Delete permanently removes the record.
	Delete(ctx context.Context, id uuid.UUID) error
}

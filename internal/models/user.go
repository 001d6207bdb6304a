package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose password hash in JSON
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserRegistration represents user registration request
type UserRegistration struct {
	Username string `json:"username" validate:"required,min=4"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserLogin represents user login request
type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserPatch is a partial profile update. There is deliberately no password field.
type UserPatch struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=4"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
}

// PasswordChange represents a change-password request
type PasswordChange struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// PublicUser represents user response (without sensitive data)
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoginResponse pairs the sanitized user with a freshly issued session token
type LoginResponse struct {
	User  PublicUser `json:"user"`
	Token string     `json:"token"`
}

// UserList is one page of active users
type UserList struct {
	Total  int64        `json:"total"`
	Users  []PublicUser `json:"users"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Public strips credential material from a user record
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

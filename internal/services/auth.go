package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopcore/ecommerce-api/internal/models"
	"go.uber.org/zap"
)

// Reasons passed to LoginFailureRecorder.
const (
	FailureUnknownEmail  = "unknown_email"
	FailureWrongPassword = "wrong_password"
)

// TokenIssuer signs session tokens for authenticated users
type TokenIssuer interface {
	Issue(userID uuid.UUID, username, email string) (string, error)
}

// LoginFailureRecorder receives failed login attempts. It does not throttle.
type LoginFailureRecorder interface {
	RecordLoginFailure(reason string)
}

// AuthService handles registration, login, sessions and self-service account management
type AuthService struct {
	store    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	failures LoginFailureRecorder
	logger   *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new auth service
func NewAuthService(
	store UserStore,
	hasher PasswordHasher,
	tokens TokenIssuer,
	failures LoginFailureRecorder,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		failures: failures,
		logger:   logger,
	}
}

// Register creates a new active user and returns it without credential material
func (s *AuthService) Register(ctx context.Context, req models.UserRegistration) (*models.PublicUser, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = NormalizeEmail(req.Email)
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}

	taken, err := s.store.FindTakenCredential(ctx, req.Username, req.Email, uuid.Nil)
	if err != nil {
		return nil, s.internal("check credential uniqueness", err)
	}
	if taken != "" {
		return nil, &DuplicateCredentialError{Field: taken}
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, s.internal("hash password", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	if err := s.store.Create(ctx, user); err != nil {
		// Concurrent registrations with the same credential lose here.
		if dup := duplicateFrom(err); dup != nil {
			return nil, dup
		}
		return nil, s.internal("create user", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))

	public := user.Public()
	return &public, nil
}

// Login verifies credentials of an active account and issues a session token
func (s *AuthService) Login(ctx context.Context, req models.UserLogin) (*models.LoginResponse, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := validateLogin(&req); err != nil {
		return nil, err
	}

	user, err := s.store.GetActiveByEmail(ctx, req.Email)
	if errors.Is(err, ErrRecordNotFound) {
		// Unknown emails still pay for one bcrypt comparison.
		s.hasher.Verify(req.Password, s.dummy())
		s.recordFailure(req.Email, FailureUnknownEmail)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.internal("load user by email", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.recordFailure(req.Email, FailureWrongPassword)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, s.internal("issue token", err)
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()))

	return &models.LoginResponse{User: user.Public(), Token: token}, nil
}

// ValidateSession resolves the user behind a verified token. The token payload
// is never trusted for account state; the record is re-read on every call.
func (s *AuthService) ValidateSession(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, s.internal("load session user", err)
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// ListUsers returns one page of active users, newest first
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) (*models.UserList, error) {
	if limit < 0 || offset < 0 {
		v := &ValidationError{}
		if limit < 0 {
			v.Add("limit", "limit must be a non-negative integer")
		}
		if offset < 0 {
			v.Add("offset", "offset must be a non-negative integer")
		}
		return nil, v
	}

	users, total, err := s.store.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, s.internal("list users", err)
	}

	list := &models.UserList{
		Total:  total,
		Users:  make([]models.PublicUser, 0, len(users)),
		Limit:  limit,
		Offset: offset,
	}
	for _, u := range users {
		list.Users = append(list.Users, u.Public())
	}
	return list, nil
}

// GetUser returns an active user by id
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	user, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// UpdateProfile changes username and/or email of the acting user's own account
func (s *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, patch models.UserPatch, acting *models.User) (*models.PublicUser, error) {
	if err := authorizeOwner(id, acting); err != nil {
		return nil, err
	}

	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		patch.Username = &trimmed
	}
	if patch.Email != nil {
		normalized := NormalizeEmail(*patch.Email)
		patch.Email = &normalized
	}
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	user, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if patch.Username != nil && *patch.Username != user.Username {
		user.Username = *patch.Username
		changed = true
	}
	if patch.Email != nil && *patch.Email != user.Email {
		user.Email = *patch.Email
		changed = true
	}

	if changed {
		taken, err := s.store.FindTakenCredential(ctx, user.Username, user.Email, user.ID)
		if err != nil {
			return nil, s.internal("check credential uniqueness", err)
		}
		if taken != "" {
			return nil, &DuplicateCredentialError{Field: taken}
		}

		if err := s.store.UpdateProfile(ctx, user); err != nil {
			if dup := duplicateFrom(err); dup != nil {
				return nil, dup
			}
			if errors.Is(err, ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, s.internal("update profile", err)
		}

		s.logger.Info("User profile updated", zap.String("user_id", user.ID.String()))
	}

	public := user.Public()
	return &public, nil
}

// ChangePassword replaces the password hash after verifying the old password
func (s *AuthService) ChangePassword(ctx context.Context, id uuid.UUID, req models.PasswordChange, acting *models.User) error {
	if err := authorizeOwner(id, acting); err != nil {
		return err
	}
	if err := validatePasswordChange(&req); err != nil {
		return err
	}

	user, err := s.loadActive(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(req.OldPassword, user.PasswordHash) {
		s.logger.Warn("Password change rejected: old password mismatch", zap.String("user_id", user.ID.String()))
		return ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return err
		}
		return s.internal("hash password", err)
	}

	if err := s.store.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNotFound
		}
		return s.internal("update password", err)
	}

	s.logger.Info("User password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// DisableAccount soft-deletes the acting user's own account.
// Already issued tokens stay signed-valid but fail ValidateSession from now on.
func (s *AuthService) DisableAccount(ctx context.Context, id uuid.UUID, acting *models.User) error {
	if err := authorizeOwner(id, acting); err != nil {
		return err
	}

	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNotFound
		}
		return s.internal("disable account", err)
	}

	s.logger.Info("User account disabled", zap.String("user_id", id.String()))
	return nil
}

// DeleteAccountPermanently removes the acting user's own record. Irreversible.
func (s *AuthService) DeleteAccountPermanently(ctx context.Context, id uuid.UUID, acting *models.User) error {
	if err := authorizeOwner(id, acting); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNotFound
		}
		return s.internal("delete account", err)
	}

	s.logger.Info("User account deleted permanently", zap.String("user_id", id.String()))
	return nil
}

func (s *AuthService) loadActive(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.internal("load user", err)
	}
	if !user.IsActive {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *AuthService) recordFailure(email, reason string) {
	s.logger.Warn("Failed login attempt", zap.String("email", email), zap.String("reason", reason))
	if s.failures != nil {
		s.failures.RecordLoginFailure(reason)
	}
}

// internal logs the underlying fault and returns an opaque ErrInternal
func (s *AuthService) internal(op string, err error) error {
	s.logger.Error("Auth operation failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, ErrInternal)
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Error("Failed to prepare dummy password hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func authorizeOwner(id uuid.UUID, acting *models.User) error {
	if acting == nil {
		return ErrUnauthenticated
	}
	if acting.ID != id {
		return ErrForbidden
	}
	return nil
}

func duplicateFrom(err error) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return &DuplicateCredentialError{Field: conflict.Field}
	}
	if errors.Is(err, ErrRecordConflict) {
		return &DuplicateCredentialError{}
	}
	return nil
}

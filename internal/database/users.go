package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopcore/ecommerce-api/internal/models"
	"github.com/shopcore/ecommerce-api/internal/services"
	"go.uber.org/zap"
)

// Unique constraint names declared in the users migration.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// Pool is the subset of *pgxpool.Pool used by repositories.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository is the PostgreSQL services.UserStore
type UserRepository struct {
	db     Pool
	logger *zap.Logger
}

var _ services.UserStore = (*UserRepository)(nil)

// NewUserRepository creates a new user repository
func NewUserRepository(db Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, email, password_hash, is_active, created_at, updated_at`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash, user.IsActive).Scan(
		&user.ID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			r.logger.Info("User insert rejected by unique constraint", zap.String("field", conflict.Field))
			return conflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("User created successfully", zap.String("user_id", user.ID.String()))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.notFoundOr(err, "failed to get user by id")
	}
	return user, nil
}

// GetActiveByEmail retrieves an active user by email
func (r *UserRepository) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, r.notFoundOr(err, "failed to get user by email")
	}
	return user, nil
}

// FindTakenCredential checks whether another record uses the email or username
func (r *UserRepository) FindTakenCredential(ctx context.Context, username, email string, excludeID uuid.UUID) (string, error) {
	query := `
		SELECT
			EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $3),
			EXISTS(SELECT 1 FROM users WHERE username = $2 AND id <> $3)
	`

	var emailTaken, usernameTaken bool
	if err := r.db.QueryRow(ctx, query, email, username, excludeID).Scan(&emailTaken, &usernameTaken); err != nil {
		r.logger.Error("Failed to check credential existence", zap.Error(err))
		return "", fmt.Errorf("failed to check credentials: %w", err)
	}

	switch {
	case emailTaken:
		return "email", nil
	case usernameTaken:
		return "username", nil
	}
	return "", nil
}

// ListActive retrieves a page of active users, newest first
func (r *UserRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_active = true`).Scan(&total); err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active = true
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to query users", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating user rows", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}

// UpdateProfile persists username and email of an active user
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, updated_at = NOW()
		WHERE id = $1 AND is_active = true
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.Email).Scan(&user.UpdatedAt)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return r.notFoundOr(err, "failed to update user profile")
	}

	return nil
}

// UpdatePassword replaces the password hash of an active user
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND is_active = true
	`

	return r.execActive(ctx, "failed to update password", query, id, passwordHash)
}

// Deactivate soft-deletes an active user
func (r *UserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true
	`

	return r.execActive(ctx, "failed to deactivate user", query, id)
}

// execActive runs a guarded update; zero affected rows means the record is gone or inactive
func (r *UserRepository) execActive(ctx context.Context, msg, query string, args ...any) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error(msg, zap.Error(err))
		return fmt.Errorf("%s: %w", msg, err)
	}

	if result.RowsAffected() == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

// Delete permanently removes a user
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.Error(err))
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return services.ErrRecordNotFound
	}

	r.logger.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}

func (r *UserRepository) notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return services.ErrRecordNotFound
	}
	r.logger.Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func uniqueViolation(err error) *services.ConflictError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}

	switch pgErr.ConstraintName {
	case emailConstraint:
		return &services.ConflictError{Field: "email"}
	case usernameConstraint:
		return &services.ConflictError{Field: "username"}
	}
	return &services.ConflictError{}
}

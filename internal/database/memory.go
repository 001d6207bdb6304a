package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/ecommerce-api/internal/models"
	"github.com/shopcore/ecommerce-api/internal/services"
)

// MemoryUserRepository is an in-process services.UserStore. Uniqueness of
// username and email is enforced under a single lock, so concurrent inserts
// with the same credential resolve to exactly one winner.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
	now   func() time.Time
}

var _ services.UserStore = (*MemoryUserRepository)(nil)

// NewMemoryUserRepository creates an empty in-memory user store
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[uuid.UUID]models.User),
		now:   time.Now,
	}
}

// Create inserts a new user
func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if field := r.takenLocked(user.Username, user.Email, uuid.Nil); field != "" {
		return &services.ConflictError{Field: field}
	}

	now := r.now().UTC()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user

	return nil
}

// GetByID retrieves a user by ID, active or not
func (r *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	return &u, nil
}

// GetActiveByEmail retrieves an active user by email
func (r *MemoryUserRepository) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email && u.IsActive {
			return &u, nil
		}
	}
	return nil, services.ErrRecordNotFound
}

// FindTakenCredential reports which credential another record already uses
func (r *MemoryUserRepository) FindTakenCredential(ctx context.Context, username, email string, excludeID uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.takenLocked(username, email, excludeID), nil
}

// ListActive returns active users newest first
func (r *MemoryUserRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	r.mu.RLock()
	active := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if u.IsActive {
			active = append(active, u)
		}
	}
	r.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID.String() > active[j].ID.String()
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	total := int64(len(active))
	if offset >= len(active) {
		return []*models.User{}, total, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}

	page := make([]*models.User, 0, end-offset)
	for i := offset; i < end; i++ {
		u := active[i]
		page = append(page, &u)
	}
	return page, total, nil
}

// UpdateProfile persists username and email of an active user
func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.activeLocked(user.ID)
	if !ok {
		return services.ErrRecordNotFound
	}
	if field := r.takenLocked(user.Username, user.Email, user.ID); field != "" {
		return &services.ConflictError{Field: field}
	}

	current.Username = user.Username
	current.Email = user.Email
	current.UpdatedAt = r.now().UTC()
	r.users[user.ID] = current

	user.UpdatedAt = current.UpdatedAt
	return nil
}

// UpdatePassword replaces the password hash of an active user
func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.activeLocked(id)
	if !ok {
		return services.ErrRecordNotFound
	}

	current.PasswordHash = passwordHash
	current.UpdatedAt = r.now().UTC()
	r.users[id] = current
	return nil
}

// Deactivate soft-deletes an active user
func (r *MemoryUserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.activeLocked(id)
	if !ok {
		return services.ErrRecordNotFound
	}

	current.IsActive = false
	current.UpdatedAt = r.now().UTC()
	r.users[id] = current
	return nil
}

func (r *MemoryUserRepository) activeLocked(id uuid.UUID) (models.User, bool) {
	u, ok := r.users[id]
	if !ok || !u.IsActive {
		return models.User{}, false
	}
	return u, true
}

// Delete permanently removes a user
func (r *MemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return services.ErrRecordNotFound
	}
	delete(r.users, id)
	return nil
}

// takenLocked reports "email" ahead of "username" when both are in use.
func (r *MemoryUserRepository) takenLocked(username, email string, excludeID uuid.UUID) string {
	usernameTaken := false
	for id, u := range r.users {
		if id == excludeID {
			continue
		}
		if u.Email == email {
			return "email"
		}
		if u.Username == username {
			usernameTaken = true
		}
	}
	if usernameTaken {
		return "username"
	}
	return ""
}

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/access-control/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It is used for local
// development and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
		if user.CardUID != nil && existing.CardUID != nil && *existing.CardUID == *user.CardUID {
			return ErrDuplicate
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	if user, err := r.find(func(u domain.User) bool { return u.Username == identifier }); err == nil {
		return user, nil
	}
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, identifier) })
}

func (r *MemoryUserRepository) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.mu.RLock()
	users := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	start := filter.offset()
	if start > len(users) {
		start = len(users)
	}
	end := start + filter.limit()
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], nil
}

func (r *MemoryUserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

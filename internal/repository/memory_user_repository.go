package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/videotube-api/internal/model"
	"github.com/iliyamo/videotube-api/internal/utils"
)

// MemoryUserRepo keeps users in process memory.  It backs STORE_DRIVER=memory
// and the service and handler tests.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	cost  int
	users map[string]model.User
}

func NewMemoryUserRepo(bcryptCost int) *MemoryUserRepo {
	return &MemoryUserRepo{cost: bcryptCost, users: make(map[string]model.User)}
}

func (r *MemoryUserRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (model.User, error) {
	username, email = normalizeIdentity(username, email)
	if username == "" && email == "" {
		return model.User{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) FindProfileByID(ctx context.Context, id string) (model.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return u.Sanitized(), nil
}

func (r *MemoryUserRepo) Create(_ context.Context, nu model.NewUser) (string, error) {
	hash, err := utils.HashPassword(nu.Password, r.cost)
	if err != nil {
		return "", err
	}
	username, email := normalizeIdentity(nu.Username, nu.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return "", ErrDuplicate
		}
	}
	now := time.Now().UTC()
	u := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     nu.FullName,
		Avatar:       nu.Avatar,
		CoverImage:   nu.CoverImage,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *MemoryUserRepo) SetRefreshToken(_ context.Context, id, tokenHash string) error {
	return r.update(id, func(u *model.User) bool {
		u.RefreshTokenHash = tokenHash
		return true
	})
}

func (r *MemoryUserRepo) RotateRefreshToken(_ context.Context, id, oldHash, newHash string) error {
	return r.update(id, func(u *model.User) bool {
		if oldHash == "" || u.RefreshTokenHash != oldHash {
			return false
		}
		u.RefreshTokenHash = newHash
		return true
	})
}

func (r *MemoryUserRepo) UpdatePassword(_ context.Context, id, password string) error {
	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return err
	}
	return r.update(id, func(u *model.User) bool {
		u.PasswordHash = hash
		u.RefreshTokenHash = ""
		return true
	})
}

// update applies fn under the write lock; fn reports whether the record
// matched.
func (r *MemoryUserRepo) update(id string, fn func(u *model.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !fn(&u) {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

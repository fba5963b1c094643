package userrepo

import (
	"context"
	"sync"
	"time"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// RepoMem is an in-memory user repository.
type RepoMem struct {
	mu      sync.RWMutex
	byName  map[string]domain.User
	byEmail map[string]string
}

// NewRepoMem returns an empty RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{
		byName:  make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

// Create creates the user and then returns it.
func (r *RepoMem) Create(ctx context.Context, arg domain.CreateUserParams) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[arg.Username]; taken {
		return domain.User{}, domain.ErrUsernameAlreadyExists
	}

	if _, taken := r.byEmail[arg.Email]; taken {
		return domain.User{}, domain.ErrEmailAlreadyExists
	}

	u := domain.User{
		Username:       arg.Username,
		HashedPassword: arg.HashedPassword,
		Email:          arg.Email,
		CreatedAt:      time.Now().UTC(),
	}

	r.byName[u.Username] = u
	r.byEmail[u.Email] = u.Username

	return u, nil
}

// Get returns the user with the given username.
func (r *RepoMem) Get(ctx context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}

	return u, nil
}

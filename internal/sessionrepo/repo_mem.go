package sessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// RepoMem is an in-memory session repository.
type RepoMem struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session
}

// NewRepoMem returns an empty RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{
		sessions: make(map[uuid.UUID]domain.Session),
	}
}

// Create creates the session and then returns it.
func (r *RepoMem) Create(ctx context.Context, arg domain.CreateSessionParams) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := domain.Session{
		ID:           arg.ID,
		Username:     arg.Username,
		RefreshToken: arg.RefreshToken,
		UserAgent:    arg.UserAgent,
		ClientIP:     arg.ClientIP,
		IsBlocked:    arg.IsBlocked,
		ExpiresAt:    arg.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	}

	r.sessions[s.ID] = s

	return s, nil
}

// Get returns the session with the given id.
func (r *RepoMem) Get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	return s, nil
}

// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by account service layer.
type Repo interface {
	Create(ctx context.Context, identifier string) (domain.Account, error)
	Get(ctx context.Context, id int32) (domain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo Repo
}

// New returns account service struct to manage account bussines logic.
func New(ar Repo) *Service {
	return &Service{repo: ar}
}

// Create creates and returns a zero-balance account for the given identifier.
func (s *Service) Create(ctx context.Context, identifier string) (domain.Account, error) {
	account, err := s.repo.Create(ctx, identifier)
	if err != nil {
		return account, err
	}

	return account, nil
}

// Get returns the account for the given account ID.
func (s *Service) Get(ctx context.Context, id int32) (domain.Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return account, err
	}

	return account, nil
}

// GetByIdentifier returns the account for the given identifier.
func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	account, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return account, err
	}

	return account, nil
}

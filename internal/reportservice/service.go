// Package reportservice manages read-only administrative aggregation over
// accounts and the transaction log.
package reportservice

import (
	"context"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// AccountReader provides the account store reads needed by reporting.
type AccountReader interface {
	SumBalances(ctx context.Context) (string, error)
	TopAccounts(ctx context.Context, n int32) ([]domain.Account, error)
}

// TxnReader provides the transaction log reads needed by reporting.
type TxnReader interface {
	ListFlagged(ctx context.Context) ([]domain.Transaction, error)
}

// Service facilitates reporting service layer logic.
type Service struct {
	accounts AccountReader
	txns     TxnReader
}

// New returns reporting service struct.
func New(ar AccountReader, tr TxnReader) *Service {
	return &Service{
		accounts: ar,
		txns:     tr,
	}
}

// Stats returns the total balance across all accounts and the top n
// accounts by balance. The totals are a point-in-time snapshot.
func (s *Service) Stats(ctx context.Context, topN int32) (domain.Stats, error) {
	total, err := s.accounts.SumBalances(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	top, err := s.accounts.TopAccounts(ctx, topN)
	if err != nil {
		return domain.Stats{}, err
	}

	summaries := make([]domain.AccountSummary, 0, len(top))
	for _, a := range top {
		summaries = append(summaries, domain.AccountSummary{
			Identifier: a.Identifier,
			Balance:    a.Balance,
		})
	}

	return domain.Stats{
		TotalBalance: total,
		TopAccounts:  summaries,
	}, nil
}

// Flagged returns all flagged transactions ordered by id ascending.
func (s *Service) Flagged(ctx context.Context) ([]domain.Transaction, error) {
	return s.txns.ListFlagged(ctx)
}

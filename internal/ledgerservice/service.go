// Package ledgerservice manages business logic layer of the ledger engine.
// It owns validation, fraud evaluation and orchestrates the atomic
// balance mutation plus log append for every value-moving operation.
package ledgerservice

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by the ledger engine.
// Every value-moving method applies the balance mutation and the log append
// as one atomic unit, or not at all.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	Deposit(ctx context.Context, arg domain.DepositParams) (domain.OperationResult, error)
	Withdraw(ctx context.Context, arg domain.WithdrawParams) (domain.OperationResult, error)
	Transfer(ctx context.Context, arg domain.TransferParams) (domain.OperationResult, error)
	ListByAccount(ctx context.Context, accountID int32) ([]domain.Transaction, error)
}

// AccountGetter resolves accounts for the engine.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type AccountGetter interface {
	Get(ctx context.Context, id int32) (domain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error)
}

// Checker evaluates a candidate operation against recent history.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Checker interface {
	Evaluate(ctx context.Context, accountID int32, amount decimal.Decimal, txType domain.TransactionType) (bool, error)
}

// Service is the ledger engine.
type Service struct {
	repo     Repo
	accounts AccountGetter
	fraud    Checker
}

// New returns the ledger engine service.
func New(r Repo, ag AccountGetter, fc Checker) *Service {
	return &Service{
		repo:     r,
		accounts: ag,
		fraud:    fc,
	}
}

func parseAmount(amount string) (decimal.Decimal, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return dec, domain.ErrInvalidAmount
	}

	if dec.LessThanOrEqual(decimal.Zero) {
		return dec, domain.ErrInvalidAmount
	}

	return dec, nil
}

// Deposit increases the account balance by amount and records the operation.
func (s *Service) Deposit(ctx context.Context, accountID int32, amount string) (domain.OperationResult, error) {
	l := zerolog.Ctx(ctx)

	dec, err := parseAmount(amount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.OperationResult{}, err
	}

	flagged, err := s.fraud.Evaluate(ctx, accountID, dec, domain.TransactionDeposit)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.OperationResult{}, err
	}

	return s.repo.Deposit(ctx, domain.DepositParams{
		AccountID: accountID,
		Amount:    dec.String(),
		Flagged:   flagged,
	})
}

// Withdraw decreases the account balance by amount and records the
// operation. The sufficiency check and the deduction happen atomically in
// the repository, so a concurrent withdraw never observes a stale balance.
func (s *Service) Withdraw(ctx context.Context, accountID int32, amount string) (domain.OperationResult, error) {
	l := zerolog.Ctx(ctx)

	dec, err := parseAmount(amount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.OperationResult{}, err
	}

	flagged, err := s.fraud.Evaluate(ctx, accountID, dec, domain.TransactionWithdraw)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.OperationResult{}, err
	}

	return s.repo.Withdraw(ctx, domain.WithdrawParams{
		AccountID: accountID,
		Amount:    dec.String(),
		Flagged:   flagged,
	})
}

// Transfer moves amount from the sender to the account resolved by the
// recipient identifier, as a single indivisible unit.
func (s *Service) Transfer(ctx context.Context, senderID int32, recipientIdentifier, amount string) (domain.OperationResult, error) {
	l := zerolog.Ctx(ctx)

	recipient, err := s.accounts.GetByIdentifier(ctx, recipientIdentifier)
	if err != nil {
		l.Info().Err(err).Send()

		if err == domain.ErrAccountNotFound {
			return domain.OperationResult{}, domain.ErrRecipientNotFound
		}

		return domain.OperationResult{}, err
	}

	dec, err := parseAmount(amount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.OperationResult{}, err
	}

	flagged, err := s.fraud.Evaluate(ctx, senderID, dec, domain.TransactionTransfer)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.OperationResult{}, err
	}

	return s.repo.Transfer(ctx, domain.TransferParams{
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Amount:      dec.String(),
		Flagged:     flagged,
	})
}

// ListTransactions returns all transactions where the account is sender or
// receiver, ordered by id ascending.
func (s *Service) ListTransactions(ctx context.Context, accountID int32) ([]domain.Transaction, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

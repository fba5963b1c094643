// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"

	"github.com/vkuzn/wallet-ledger/internal/domain"
	"github.com/vkuzn/wallet-ledger/pkg/dbpkg"
	"github.com/vkuzn/wallet-ledger/pkg/errorspkg"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const createQuery = `
INSERT INTO
    accounts (identifier, balance)
VALUES
    ($1, 0)
RETURNING id, identifier, balance, created_at
`

// Create creates an account with zero balance and then returns it.
func (r *RepoPGS) Create(ctx context.Context, identifier string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, identifier)

	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Identifier,
		&a.Balance,
		&a.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "accounts_identifier_key" {
				return a, domain.ErrDuplicateIdentifier
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT
	id, identifier, balance, created_at
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int32) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Identifier,
		&a.Balance,
		&a.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getByIdentifierQuery = `
SELECT
	id, identifier, balance, created_at
FROM accounts
WHERE identifier = $1
`

// GetByIdentifier returns the account with the given identifier.
func (r *RepoPGS) GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getByIdentifierQuery, identifier)

	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Identifier,
		&a.Balance,
		&a.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const addBalanceQuery = `
UPDATE accounts
SET balance = balance + $1
WHERE id = $2
RETURNING id, identifier, balance, created_at
`

// AddBalance adjusts the account's balance by the given signed amount and
// returns the changed account. The accounts_balance_check constraint keeps
// every balance non-negative, so an overdraw fails the whole statement.
func (r *RepoPGS) AddBalance(ctx context.Context, amount string, id int32) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, addBalanceQuery, amount, id)

	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Identifier,
		&a.Balance,
		&a.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "accounts_balance_check" {
				return a, domain.ErrInsufficientBalance
			}
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const sumBalancesQuery = `
SELECT COALESCE(SUM(balance), 0)
FROM accounts
`

// SumBalances returns the sum of all account balances.
func (r *RepoPGS) SumBalances(ctx context.Context) (string, error) {
	l := zerolog.Ctx(ctx)

	var sum string
	if err := r.db.QueryRowContext(ctx, sumBalancesQuery).Scan(&sum); err != nil {
		l.Error().Err(err).Send()
		return "", errorspkg.ErrInternal
	}

	return sum, nil
}

const topAccountsQuery = `
SELECT
	id, identifier, balance, created_at
FROM accounts
ORDER BY balance DESC, id ASC
LIMIT $1
`

// TopAccounts returns up to n accounts ordered by balance descending,
// ties broken by account id ascending.
func (r *RepoPGS) TopAccounts(ctx context.Context, n int32) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, topAccountsQuery, n)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Identifier, &a.Balance, &a.CreatedAt); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

// Package txnrepo manages repository layer of the transaction log and the
// transactional value-moving operations built on top of it.
package txnrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/vkuzn/wallet-ledger/internal/accountrepo"
	"github.com/vkuzn/wallet-ledger/internal/domain"
	"github.com/vkuzn/wallet-ledger/pkg/dbpkg"
	"github.com/vkuzn/wallet-ledger/pkg/errorspkg"

	"github.com/rs/zerolog"
)

// RepoPGS facilitates transaction log repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns a RepoPGS bound to an already open transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns a RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const appendQuery = `
INSERT INTO
    transactions (sender_id, receiver_id, amount, type, flagged)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING id, sender_id, receiver_id, amount, type, flagged, created_at
`

func (r *RepoPGS) append(ctx context.Context, senderID, receiverID int32, amount string, txType domain.TransactionType, flagged bool) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	receiver := sql.NullInt32{Int32: receiverID, Valid: receiverID != 0}

	row := r.db.QueryRowContext(ctx, appendQuery, senderID, receiver, amount, txType, flagged)

	txn, err := scanTransaction(row)
	if err != nil {
		l.Error().Err(err).Send()
		return txn, errorspkg.ErrInternal
	}

	return txn, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		txn      domain.Transaction
		receiver sql.NullInt32
	)

	err := row.Scan(
		&txn.ID,
		&txn.SenderID,
		&receiver,
		&txn.Amount,
		&txn.Type,
		&txn.Flagged,
		&txn.CreatedAt,
	)
	if err != nil {
		return txn, err
	}

	txn.ReceiverID = receiver.Int32

	return txn, nil
}

const listByAccountQuery = `
SELECT
	id, sender_id, receiver_id, amount, type, flagged, created_at
FROM transactions
WHERE
    sender_id = $1 OR receiver_id = $1
ORDER BY id
`

// ListByAccount returns all transactions where the account is sender or
// receiver, ordered by id ascending.
func (r *RepoPGS) ListByAccount(ctx context.Context, accountID int32) ([]domain.Transaction, error) {
	return r.list(ctx, listByAccountQuery, accountID)
}

const listFlaggedQuery = `
SELECT
	id, sender_id, receiver_id, amount, type, flagged, created_at
FROM transactions
WHERE flagged
ORDER BY id
`

// ListFlagged returns all flagged transactions ordered by id ascending.
func (r *RepoPGS) ListFlagged(ctx context.Context) ([]domain.Transaction, error) {
	return r.list(ctx, listFlaggedQuery)
}

func (r *RepoPGS) list(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, txn)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const countSenderSinceQuery = `
SELECT COUNT(*)
FROM transactions
WHERE sender_id = $1 AND created_at >= $2
`

// CountSenderSince counts transactions where the account is sender with a
// timestamp at or after the given instant.
func (r *RepoPGS) CountSenderSince(ctx context.Context, accountID int32, since time.Time) (int64, error) {
	l := zerolog.Ctx(ctx)

	var count int64
	if err := r.db.QueryRowContext(ctx, countSenderSinceQuery, accountID, since).Scan(&count); err != nil {
		l.Error().Err(err).Send()
		return 0, errorspkg.ErrInternal
	}

	return count, nil
}

// execTx executes fn within a database transaction against repositories
// bound to that transaction.
func (r *RepoPGS) execTx(ctx context.Context, fn func(accounts *accountrepo.RepoPGS, txns *RepoPGS) error) error {
	l := zerolog.Ctx(ctx)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if err := fn(accountrepo.NewRepoPGS(tx), NewTxRepoPGS(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.Error().Err(rbErr).Send()
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

// Deposit increases the account balance and appends the describing log entry
// within a single database transaction.
func (r *RepoPGS) Deposit(ctx context.Context, arg domain.DepositParams) (domain.OperationResult, error) {
	var result domain.OperationResult

	err := r.execTx(ctx, func(accounts *accountrepo.RepoPGS, txns *RepoPGS) error {
		var err error

		result.Sender, err = accounts.AddBalance(ctx, arg.Amount, arg.AccountID)
		if err != nil {
			return err
		}

		result.Transaction, err = txns.append(ctx, arg.AccountID, 0, arg.Amount, domain.TransactionDeposit, arg.Flagged)

		return err
	})

	return result, err
}

// Withdraw decreases the account balance and appends the describing log entry
// within a single database transaction. The balance check constraint makes
// the sufficiency check and the deduction one atomic unit.
func (r *RepoPGS) Withdraw(ctx context.Context, arg domain.WithdrawParams) (domain.OperationResult, error) {
	var result domain.OperationResult

	err := r.execTx(ctx, func(accounts *accountrepo.RepoPGS, txns *RepoPGS) error {
		var err error

		result.Sender, err = accounts.AddBalance(ctx, "-"+arg.Amount, arg.AccountID)
		if err != nil {
			return err
		}

		result.Transaction, err = txns.append(ctx, arg.AccountID, 0, arg.Amount, domain.TransactionWithdraw, arg.Flagged)

		return err
	})

	return result, err
}

// Transfer moves the amount between the two accounts and appends the
// describing log entry within a single database transaction.
func (r *RepoPGS) Transfer(ctx context.Context, arg domain.TransferParams) (domain.OperationResult, error) {
	var result domain.OperationResult

	err := r.execTx(ctx, func(accounts *accountrepo.RepoPGS, txns *RepoPGS) error {
		var err error

		// To avoid deadlocks execute statements in consistent id order.
		switch {
		case arg.SenderID == arg.RecipientID:
			// Self-transfer is a permitted no-op on the balance but is
			// still balance-checked and logged.
			if result.Sender, err = accounts.AddBalance(ctx, "-"+arg.Amount, arg.SenderID); err != nil {
				return err
			}

			result.Sender, err = accounts.AddBalance(ctx, arg.Amount, arg.SenderID)
			result.Recipient = result.Sender
		case arg.SenderID < arg.RecipientID:
			if result.Sender, err = accounts.AddBalance(ctx, "-"+arg.Amount, arg.SenderID); err != nil {
				return err
			}

			result.Recipient, err = accounts.AddBalance(ctx, arg.Amount, arg.RecipientID)
		default:
			if result.Recipient, err = accounts.AddBalance(ctx, arg.Amount, arg.RecipientID); err != nil {
				return err
			}

			result.Sender, err = accounts.AddBalance(ctx, "-"+arg.Amount, arg.SenderID)
		}

		if err != nil {
			return err
		}

		result.Transaction, err = txns.append(ctx, arg.SenderID, arg.RecipientID, arg.Amount, domain.TransactionTransfer, arg.Flagged)

		return err
	})

	return result, err
}

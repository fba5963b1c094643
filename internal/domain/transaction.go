package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidAmount indicates a malformed or non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TransactionType enumerates the value-moving operations.
type TransactionType string

// Supported transaction types.
const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
	TransactionTransfer TransactionType = "transfer"
)

// Transaction is an immutable, append-only record of one accepted
// value-moving operation. ReceiverID is zero except for transfers.
type Transaction struct {
	ID         int64           `json:"id"`
	SenderID   int32           `json:"sender_id"`
	ReceiverID int32           `json:"receiver_id,omitempty"`
	Amount     string          `json:"amount"`
	Type       TransactionType `json:"type"`
	Flagged    bool            `json:"flagged"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DepositParams is the input data for the deposit transaction.
type DepositParams struct {
	AccountID int32  `json:"account_id"`
	Amount    string `json:"amount"`
	Flagged   bool   `json:"flagged"`
}

// WithdrawParams is the input data for the withdraw transaction.
type WithdrawParams struct {
	AccountID int32  `json:"account_id"`
	Amount    string `json:"amount"`
	Flagged   bool   `json:"flagged"`
}

// TransferParams is the input data for the transfer transaction.
type TransferParams struct {
	SenderID    int32  `json:"sender_id"`
	RecipientID int32  `json:"recipient_id"`
	Amount      string `json:"amount"`
	Flagged     bool   `json:"flagged"`
}

// OperationResult is the outcome of a successfully applied ledger operation.
// Recipient is zero-valued unless the operation was a transfer.
type OperationResult struct {
	Transaction Transaction `json:"transaction"`
	Sender      Account     `json:"sender"`
	Recipient   Account     `json:"recipient,omitempty"`
}

// Stats is the administrative point-in-time aggregate over all accounts.
type Stats struct {
	TotalBalance string           `json:"total_balance"`
	TopAccounts  []AccountSummary `json:"top_accounts"`
}

// AccountSummary is the public projection of an account used in reports.
type AccountSummary struct {
	Identifier string `json:"identifier"`
	Balance    string `json:"balance"`
}

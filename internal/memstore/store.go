// Package memstore provides an in-memory persistence collaborator for the
// ledger. It keeps accounts and the transaction log in process memory and
// is safe for concurrent use: every account is guarded by its own mutex,
// and two-account operations take the locks in ascending account id order.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

type account struct {
	mu         sync.Mutex
	id         int32
	identifier string
	balance    decimal.Decimal
	createdAt  time.Time
}

func (a *account) snapshot() domain.Account {
	return domain.Account{
		ID:         a.id,
		Identifier: a.identifier,
		Balance:    a.balance.String(),
		CreatedAt:  a.createdAt,
	}
}

// Store is an in-memory implementation of the account store and the
// transaction log. The zero value is not usable; use New.
type Store struct {
	mu           sync.RWMutex // guards the maps and id assignment
	accounts     map[int32]*account
	byIdentifier map[string]*account
	nextID       int32

	logMu   sync.Mutex // guards the log; taken after account locks
	entries []domain.Transaction
	nextTxn int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:     make(map[int32]*account),
		byIdentifier: make(map[string]*account),
	}
}

// Create creates an account with zero balance and then returns it.
func (s *Store) Create(ctx context.Context, identifier string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byIdentifier[identifier]; taken {
		return domain.Account{}, domain.ErrDuplicateIdentifier
	}

	s.nextID++
	a := &account{
		id:         s.nextID,
		identifier: identifier,
		balance:    decimal.Zero,
		createdAt:  time.Now().UTC(),
	}

	s.accounts[a.id] = a
	s.byIdentifier[identifier] = a

	return a.snapshot(), nil
}

func (s *Store) lookup(id int32) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return a, nil
}

// Get returns the account with the given id.
func (s *Store) Get(ctx context.Context, id int32) (domain.Account, error) {
	a, err := s.lookup(id)
	if err != nil {
		return domain.Account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshot(), nil
}

// GetByIdentifier returns the account with the given identifier.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	s.mu.RLock()
	a, ok := s.byIdentifier[identifier]
	s.mu.RUnlock()

	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshot(), nil
}

// AddBalance adjusts the account's balance by the given signed amount and
// returns the changed account. The read-modify-write is atomic with respect
// to any other mutator of the same account.
func (s *Store) AddBalance(ctx context.Context, amount string, id int32) (domain.Account, error) {
	delta, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Account{}, domain.ErrInvalidAmount
	}

	a, err := s.lookup(id)
	if err != nil {
		return domain.Account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.balance.Add(delta)
	if next.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientBalance
	}

	a.balance = next

	return a.snapshot(), nil
}

// appendEntry assigns the next id and timestamp and persists the entry.
// Callers hold the involved account lock(s), which makes the balance
// mutation and the log append one atomic unit.
func (s *Store) appendEntry(senderID, receiverID int32, amount string, txType domain.TransactionType, flagged bool) domain.Transaction {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	s.nextTxn++
	txn := domain.Transaction{
		ID:         s.nextTxn,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Type:       txType,
		Flagged:    flagged,
		CreatedAt:  time.Now().UTC(),
	}

	s.entries = append(s.entries, txn)

	return txn
}

// Deposit increases the account balance and appends the describing log entry
// as one atomic unit.
func (s *Store) Deposit(ctx context.Context, arg domain.DepositParams) (domain.OperationResult, error) {
	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		return domain.OperationResult{}, domain.ErrInvalidAmount
	}

	a, err := s.lookup(arg.AccountID)
	if err != nil {
		return domain.OperationResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.balance = a.balance.Add(amount)

	return domain.OperationResult{
		Transaction: s.appendEntry(arg.AccountID, 0, amount.String(), domain.TransactionDeposit, arg.Flagged),
		Sender:      a.snapshot(),
	}, nil
}

// Withdraw checks sufficiency, decreases the balance and appends the
// describing log entry, all under the account lock.
func (s *Store) Withdraw(ctx context.Context, arg domain.WithdrawParams) (domain.OperationResult, error) {
	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		return domain.OperationResult{}, domain.ErrInvalidAmount
	}

	a, err := s.lookup(arg.AccountID)
	if err != nil {
		return domain.OperationResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.balance.LessThan(amount) {
		return domain.OperationResult{}, domain.ErrInsufficientBalance
	}

	a.balance = a.balance.Sub(amount)

	return domain.OperationResult{
		Transaction: s.appendEntry(arg.AccountID, 0, amount.String(), domain.TransactionWithdraw, arg.Flagged),
		Sender:      a.snapshot(),
	}, nil
}

// Transfer moves the amount between the two accounts and appends the
// describing log entry as one atomic unit. Locks are taken in ascending
// account id order to prevent deadlock against a concurrent reverse
// transfer.
func (s *Store) Transfer(ctx context.Context, arg domain.TransferParams) (domain.OperationResult, error) {
	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		return domain.OperationResult{}, domain.ErrInvalidAmount
	}

	sender, err := s.lookup(arg.SenderID)
	if err != nil {
		return domain.OperationResult{}, err
	}

	recipient, err := s.lookup(arg.RecipientID)
	if err != nil {
		return domain.OperationResult{}, domain.ErrRecipientNotFound
	}

	switch {
	case sender.id == recipient.id:
		sender.mu.Lock()
		defer sender.mu.Unlock()
	case sender.id < recipient.id:
		sender.mu.Lock()
		defer sender.mu.Unlock()
		recipient.mu.Lock()
		defer recipient.mu.Unlock()
	default:
		recipient.mu.Lock()
		defer recipient.mu.Unlock()
		sender.mu.Lock()
		defer sender.mu.Unlock()
	}

	if sender.balance.LessThan(amount) {
		return domain.OperationResult{}, domain.ErrInsufficientBalance
	}

	// Self-transfer is a permitted no-op on the balance but is still logged.
	if sender.id != recipient.id {
		sender.balance = sender.balance.Sub(amount)
		recipient.balance = recipient.balance.Add(amount)
	}

	return domain.OperationResult{
		Transaction: s.appendEntry(arg.SenderID, arg.RecipientID, amount.String(), domain.TransactionTransfer, arg.Flagged),
		Sender:      sender.snapshot(),
		Recipient:   recipient.snapshot(),
	}, nil
}

// ListByAccount returns all transactions where the account is sender or
// receiver, ordered by id ascending.
func (s *Store) ListByAccount(ctx context.Context, accountID int32) ([]domain.Transaction, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	items := []domain.Transaction{}

	for _, txn := range s.entries {
		if txn.SenderID == accountID || txn.ReceiverID == accountID {
			items = append(items, txn)
		}
	}

	return items, nil
}

// ListFlagged returns all flagged transactions ordered by id ascending.
func (s *Store) ListFlagged(ctx context.Context) ([]domain.Transaction, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	items := []domain.Transaction{}

	for _, txn := range s.entries {
		if txn.Flagged {
			items = append(items, txn)
		}
	}

	return items, nil
}

// CountSenderSince counts transactions where the account is sender with a
// timestamp at or after the given instant.
func (s *Store) CountSenderSince(ctx context.Context, accountID int32, since time.Time) (int64, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	var count int64

	for _, txn := range s.entries {
		if txn.SenderID == accountID && !txn.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

// SumBalances returns the sum of all account balances. The result is a
// point-in-time aggregate: each account is read under its own lock, one at
// a time.
func (s *Store) SumBalances(ctx context.Context) (string, error) {
	sum := decimal.Zero

	for _, a := range s.listAccounts() {
		a.mu.Lock()
		sum = sum.Add(a.balance)
		a.mu.Unlock()
	}

	return sum.String(), nil
}

// TopAccounts returns up to n accounts ordered by balance descending,
// ties broken by account id ascending.
func (s *Store) TopAccounts(ctx context.Context, n int32) ([]domain.Account, error) {
	var items []domain.Account

	for _, a := range s.listAccounts() {
		a.mu.Lock()
		items = append(items, a.snapshot())
		a.mu.Unlock()
	}

	sort.Slice(items, func(i, j int) bool {
		bi, _ := decimal.NewFromString(items[i].Balance)
		bj, _ := decimal.NewFromString(items[j].Balance)

		if !bi.Equal(bj) {
			return bi.GreaterThan(bj)
		}

		return items[i].ID < items[j].ID
	})

	if int32(len(items)) > n {
		items = items[:n]
	}

	if items == nil {
		items = []domain.Account{}
	}

	return items, nil
}

func (s *Store) listAccounts() []*account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].id < accounts[j].id })

	return accounts
}

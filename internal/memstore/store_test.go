package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

var ctx = context.Background()

func seedAccount(t *testing.T, s *Store, identifier, balance string) domain.Account {
	t.Helper()

	account, err := s.Create(ctx, identifier)
	if err != nil {
		t.Fatalf("s.Create(ctx, %v) returned error: %v", identifier, err)
	}

	if balance != "0" {
		account, err = s.AddBalance(ctx, balance, account.ID)
		if err != nil {
			t.Fatalf("s.AddBalance(ctx, %v, %v) returned error: %v", balance, account.ID, err)
		}
	}

	return account
}

func TestCreate(t *testing.T) {
	t.Parallel()

	s := New()

	account, err := s.Create(ctx, "alice")
	if err != nil {
		t.Fatalf(`s.Create(ctx, "alice") returned error: %v`, err)
	}

	if account.ID == 0 {
		t.Error("account.ID = 0, want non-zero")
	}

	if account.Balance != "0" {
		t.Errorf("account.Balance = %v, want 0", account.Balance)
	}

	if account.CreatedAt.IsZero() {
		t.Error("account.CreatedAt is zero, want non-zero")
	}

	if _, err := s.Create(ctx, "alice"); err != domain.ErrDuplicateIdentifier {
		t.Errorf(`s.Create(ctx, "alice") again returned %v, want ErrDuplicateIdentifier`, err)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	s := New()
	want := seedAccount(t, s, "alice", "100")

	got, err := s.Get(ctx, want.ID)
	if err != nil {
		t.Fatalf("s.Get(ctx, %v) returned error: %v", want.ID, err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("s.Get(ctx, %v) returned unexpected difference (-want +got):\n%s", want.ID, diff)
	}

	if _, err := s.Get(ctx, want.ID+100); err != domain.ErrAccountNotFound {
		t.Errorf("s.Get(ctx, %v) returned %v, want ErrAccountNotFound", want.ID+100, err)
	}

	byIdent, err := s.GetByIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf(`s.GetByIdentifier(ctx, "alice") returned error: %v`, err)
	}

	if diff := cmp.Diff(want, byIdent); diff != "" {
		t.Errorf("s.GetByIdentifier returned unexpected difference (-want +got):\n%s", diff)
	}

	if _, err := s.GetByIdentifier(ctx, "nobody"); err != domain.ErrAccountNotFound {
		t.Errorf(`s.GetByIdentifier(ctx, "nobody") returned %v, want ErrAccountNotFound`, err)
	}
}

func TestDeposit(t *testing.T) {
	t.Parallel()

	s := New()
	account := seedAccount(t, s, "alice", "0")

	result, err := s.Deposit(ctx, domain.DepositParams{AccountID: account.ID, Amount: "100.50"})
	if err != nil {
		t.Fatalf("s.Deposit returned error: %v", err)
	}

	if result.Sender.Balance != "100.5" {
		t.Errorf("result.Sender.Balance = %v, want 100.5", result.Sender.Balance)
	}

	wantTxn := domain.Transaction{
		SenderID: account.ID,
		Amount:   "100.5",
		Type:     domain.TransactionDeposit,
	}

	ignoreFields := cmpopts.IgnoreFields(domain.Transaction{}, "ID", "CreatedAt")
	if diff := cmp.Diff(wantTxn, result.Transaction, ignoreFields); diff != "" {
		t.Errorf("s.Deposit returned unexpected difference (-want +got):\n%s", diff)
	}

	if result.Transaction.ID == 0 {
		t.Error("result.Transaction.ID = 0, want non-zero")
	}

	if _, err := s.Deposit(ctx, domain.DepositParams{AccountID: account.ID + 100, Amount: "1"}); err != domain.ErrAccountNotFound {
		t.Errorf("s.Deposit to missing account returned %v, want ErrAccountNotFound", err)
	}
}

func TestWithdraw(t *testing.T) {
	t.Parallel()

	s := New()
	account := seedAccount(t, s, "alice", "100")

	result, err := s.Withdraw(ctx, domain.WithdrawParams{AccountID: account.ID, Amount: "40"})
	if err != nil {
		t.Fatalf("s.Withdraw returned error: %v", err)
	}

	if result.Sender.Balance != "60" {
		t.Errorf("result.Sender.Balance = %v, want 60", result.Sender.Balance)
	}

	if result.Transaction.Type != domain.TransactionWithdraw {
		t.Errorf("result.Transaction.Type = %v, want %v", result.Transaction.Type, domain.TransactionWithdraw)
	}

	// Balance stays untouched and nothing is logged when funds are short.
	if _, err := s.Withdraw(ctx, domain.WithdrawParams{AccountID: account.ID, Amount: "60.01"}); err != domain.ErrInsufficientBalance {
		t.Fatalf("overdraw returned %v, want ErrInsufficientBalance", err)
	}

	got, err := s.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("s.Get returned error: %v", err)
	}

	if got.Balance != "60" {
		t.Errorf("balance after failed withdraw = %v, want 60", got.Balance)
	}

	txns, err := s.ListByAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("s.ListByAccount returned error: %v", err)
	}

	if len(txns) != 1 {
		t.Errorf("len(txns) = %v, want 1 (only the successful withdraw)", len(txns))
	}
}

func TestTransfer(t *testing.T) {
	t.Parallel()

	s := New()
	alice := seedAccount(t, s, "alice", "60")
	bob := seedAccount(t, s, "bob", "40")

	result, err := s.Transfer(ctx, domain.TransferParams{
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		Amount:      "25",
	})
	if err != nil {
		t.Fatalf("s.Transfer returned error: %v", err)
	}

	if result.Sender.Balance != "35" {
		t.Errorf("result.Sender.Balance = %v, want 35", result.Sender.Balance)
	}

	if result.Recipient.Balance != "65" {
		t.Errorf("result.Recipient.Balance = %v, want 65", result.Recipient.Balance)
	}

	if result.Transaction.ReceiverID != bob.ID {
		t.Errorf("result.Transaction.ReceiverID = %v, want %v", result.Transaction.ReceiverID, bob.ID)
	}

	// A failed transfer must leave both balances untouched.
	if _, err := s.Transfer(ctx, domain.TransferParams{
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		Amount:      "1000",
	}); err != domain.ErrInsufficientBalance {
		t.Fatalf("overdrawing transfer returned %v, want ErrInsufficientBalance", err)
	}

	gotAlice, _ := s.Get(ctx, alice.ID)
	gotBob, _ := s.Get(ctx, bob.ID)

	if gotAlice.Balance != "35" || gotBob.Balance != "65" {
		t.Errorf("balances after failed transfer = %v, %v, want 35, 65", gotAlice.Balance, gotBob.Balance)
	}
}

func TestTransferSelf(t *testing.T) {
	t.Parallel()

	s := New()
	alice := seedAccount(t, s, "alice", "50")

	result, err := s.Transfer(ctx, domain.TransferParams{
		SenderID:    alice.ID,
		RecipientID: alice.ID,
		Amount:      "20",
	})
	if err != nil {
		t.Fatalf("self transfer returned error: %v", err)
	}

	if result.Sender.Balance != "50" {
		t.Errorf("result.Sender.Balance = %v, want 50", result.Sender.Balance)
	}

	// Sufficiency still applies even though the balance is unchanged.
	if _, err := s.Transfer(ctx, domain.TransferParams{
		SenderID:    alice.ID,
		RecipientID: alice.ID,
		Amount:      "50.01",
	}); err != domain.ErrInsufficientBalance {
		t.Errorf("overdrawing self transfer returned %v, want ErrInsufficientBalance", err)
	}

	txns, err := s.ListByAccount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("s.ListByAccount returned error: %v", err)
	}

	// Only the successful self transfer is logged.
	if len(txns) != 1 {
		t.Errorf("len(txns) = %v, want 1", len(txns))
	}
}

func TestConcurrentWithdraws(t *testing.T) {
	t.Parallel()

	s := New()
	account := seedAccount(t, s, "alice", "101")

	n := 10
	errs := make(chan error)

	for i := 0; i < n; i++ {
		go func() {
			_, err := s.Withdraw(ctx, domain.WithdrawParams{AccountID: account.ID, Amount: "51"})
			errs <- err
		}()
	}

	var succeeded, insufficient int

	for i := 0; i < n; i++ {
		switch err := <-errs; err {
		case nil:
			succeeded++
		case domain.ErrInsufficientBalance:
			insufficient++
		default:
			t.Fatalf("s.Withdraw returned unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("succeeded = %v, want exactly 1", succeeded)
	}

	got, err := s.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("s.Get returned error: %v", err)
	}

	if got.Balance != "50" {
		t.Errorf("final balance = %v, want 50", got.Balance)
	}
}

func TestConcurrentOpposingTransfers(t *testing.T) {
	t.Parallel()

	s := New()
	alice := seedAccount(t, s, "alice", "1000")
	bob := seedAccount(t, s, "bob", "1000")

	// Opposing directions exercise the ordered locking under contention.
	n := 20
	errs := make(chan error)

	for i := 0; i < n; i++ {
		fromID, toID := alice.ID, bob.ID
		if i%2 == 1 {
			fromID, toID = bob.ID, alice.ID
		}

		go func() {
			_, err := s.Transfer(ctx, domain.TransferParams{
				SenderID:    fromID,
				RecipientID: toID,
				Amount:      "10",
			})
			errs <- err
		}()
	}

	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("s.Transfer returned error: %v", err)
		}
	}

	gotAlice, _ := s.Get(ctx, alice.ID)
	gotBob, _ := s.Get(ctx, bob.ID)

	if gotAlice.Balance != "1000" || gotBob.Balance != "1000" {
		t.Errorf("balances = %v, %v, want 1000, 1000", gotAlice.Balance, gotBob.Balance)
	}

	sum, err := s.SumBalances(ctx)
	if err != nil {
		t.Fatalf("s.SumBalances returned error: %v", err)
	}

	if sum != "2000" {
		t.Errorf("s.SumBalances = %v, want 2000", sum)
	}
}

func TestListByAccountOrdering(t *testing.T) {
	t.Parallel()

	s := New()
	alice := seedAccount(t, s, "alice", "100")
	bob := seedAccount(t, s, "bob", "0")

	if _, err := s.Withdraw(ctx, domain.WithdrawParams{AccountID: alice.ID, Amount: "10"}); err != nil {
		t.Fatalf("s.Withdraw returned error: %v", err)
	}

	if _, err := s.Transfer(ctx, domain.TransferParams{SenderID: alice.ID, RecipientID: bob.ID, Amount: "5"}); err != nil {
		t.Fatalf("s.Transfer returned error: %v", err)
	}

	txns, err := s.ListByAccount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("s.ListByAccount returned error: %v", err)
	}

	if len(txns) != 2 {
		t.Fatalf("len(txns) = %v, want 2", len(txns))
	}

	for i := 1; i < len(txns); i++ {
		if txns[i].ID <= txns[i-1].ID {
			t.Errorf("txns[%d].ID = %v not greater than txns[%d].ID = %v", i, txns[i].ID, i-1, txns[i-1].ID)
		}
	}

	// The recipient sees the transfer too.
	bobTxns, err := s.ListByAccount(ctx, bob.ID)
	if err != nil {
		t.Fatalf("s.ListByAccount returned error: %v", err)
	}

	if len(bobTxns) != 1 || bobTxns[0].Type != domain.TransactionTransfer {
		t.Errorf("bobTxns = %+v, want the single incoming transfer", bobTxns)
	}
}

func TestListFlagged(t *testing.T) {
	t.Parallel()

	s := New()
	alice := seedAccount(t, s, "alice", "0")

	if _, err := s.Deposit(ctx, domain.DepositParams{AccountID: alice.ID, Amount: "10"}); err != nil {
		t.Fatalf("s.Deposit returned error: %v", err)
	}

	flaggedDeposit, err := s.Deposit(ctx, domain.DepositParams{AccountID: alice.ID, Amount: "20000", Flagged: true})
	if err != nil {
		t.Fatalf("s.Deposit returned error: %v", err)
	}

	flagged, err := s.ListFlagged(ctx)
	if err != nil {
		t.Fatalf("s.ListFlagged returned error: %v", err)
	}

	if len(flagged) != 1 {
		t.Fatalf("len(flagged) = %v, want 1", len(flagged))
	}

	if diff := cmp.Diff(flaggedDeposit.Transaction, flagged[0]); diff != "" {
		t.Errorf("s.ListFlagged returned unexpected difference (-want +got):\n%s", diff)
	}
}

func TestCountSenderSince(t *testing.T) {
	t.Parallel()

	s := New()
	alice := seedAccount(t, s, "alice", "100")
	bob := seedAccount(t, s, "bob", "100")

	if _, err := s.Transfer(ctx, domain.TransferParams{SenderID: alice.ID, RecipientID: bob.ID, Amount: "1"}); err != nil {
		t.Fatalf("s.Transfer returned error: %v", err)
	}

	if _, err := s.Withdraw(ctx, domain.WithdrawParams{AccountID: alice.ID, Amount: "1"}); err != nil {
		t.Fatalf("s.Withdraw returned error: %v", err)
	}

	since := time.Now().Add(-time.Minute)

	// The transfer and the withdraw are both sender side for alice.
	count, err := s.CountSenderSince(ctx, alice.ID, since)
	if err != nil {
		t.Fatalf("s.CountSenderSince returned error: %v", err)
	}

	if count != 2 {
		t.Errorf("count for alice = %v, want 2", count)
	}

	// Incoming transfers do not count against bob.
	count, err = s.CountSenderSince(ctx, bob.ID, since)
	if err != nil {
		t.Fatalf("s.CountSenderSince returned error: %v", err)
	}

	if count != 0 {
		t.Errorf("count for bob = %v, want 0", count)
	}

	// Nothing precedes the beginning of the log.
	count, err = s.CountSenderSince(ctx, alice.ID, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("s.CountSenderSince returned error: %v", err)
	}

	if count != 0 {
		t.Errorf("count in the future = %v, want 0", count)
	}
}

func TestTopAccounts(t *testing.T) {
	t.Parallel()

	s := New()
	seedAccount(t, s, "alice", "50")
	bob := seedAccount(t, s, "bob", "200")
	carol := seedAccount(t, s, "carol", "100")

	top, err := s.TopAccounts(ctx, 2)
	if err != nil {
		t.Fatalf("s.TopAccounts(ctx, 2) returned error: %v", err)
	}

	if len(top) != 2 {
		t.Fatalf("len(top) = %v, want 2", len(top))
	}

	if top[0].ID != bob.ID || top[1].ID != carol.ID {
		t.Errorf("top = %v, %v, want %v, %v", top[0].Identifier, top[1].Identifier, "bob", "carol")
	}

	// Ties break by account id ascending.
	s2 := New()
	first := seedAccount(t, s2, "first", "100")
	second := seedAccount(t, s2, "second", "100")

	top, err = s2.TopAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("s2.TopAccounts(ctx, 10) returned error: %v", err)
	}

	if len(top) != 2 || top[0].ID != first.ID || top[1].ID != second.ID {
		t.Errorf("tied top = %+v, want ids %v then %v", top, first.ID, second.ID)
	}
}

func TestSumBalances(t *testing.T) {
	t.Parallel()

	s := New()

	sum, err := s.SumBalances(ctx)
	if err != nil {
		t.Fatalf("s.SumBalances returned error: %v", err)
	}

	if sum != "0" {
		t.Errorf("sum of empty store = %v, want 0", sum)
	}

	seedAccount(t, s, "alice", "10.50")
	seedAccount(t, s, "bob", "0.50")

	sum, err = s.SumBalances(ctx)
	if err != nil {
		t.Fatalf("s.SumBalances returned error: %v", err)
	}

	want := decimal.NewFromInt(11)
	got, err := decimal.NewFromString(sum)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%v) returned error: %v", sum, err)
	}

	if !got.Equal(want) {
		t.Errorf("s.SumBalances = %v, want 11", sum)
	}
}

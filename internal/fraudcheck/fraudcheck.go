// Package fraudcheck evaluates candidate operations against recent history.
// The heuristic is deliberately simple: it only annotates transactions,
// it never blocks them.
package fraudcheck

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkuzn/wallet-ledger/internal/domain"
)

// Params holds the tunable thresholds of the heuristic.
type Params struct {
	// RateWindow is the trailing window over sender-initiated transactions.
	RateWindow time.Duration
	// RateThreshold is the maximum number of sender-initiated transactions
	// within RateWindow, counting the attempt under evaluation.
	RateThreshold int64
	// AmountThreshold is the largest single amount that passes unflagged.
	AmountThreshold decimal.Decimal
}

// DefaultParams returns the stock policy thresholds.
func DefaultParams() Params {
	return Params{
		RateWindow:      time.Minute,
		RateThreshold:   3,
		AmountThreshold: decimal.NewFromInt(10_000),
	}
}

// Counter provides the transaction log read needed by the detector.
//
//go:generate mockgen -source fraudcheck.go -destination fraudcheck_mock.go -package fraudcheck
type Counter interface {
	CountSenderSince(ctx context.Context, accountID int32, since time.Time) (int64, error)
}

// Detector flags suspicious operations.
type Detector struct {
	log    Counter
	params Params
}

// New returns a Detector reading recent history from the given log.
func New(log Counter, params Params) *Detector {
	return &Detector{
		log:    log,
		params: params,
	}
}

// Evaluate reports whether the candidate operation should be flagged.
// The rate rule counts only sender-initiated transactions, inclusive of the
// attempt under evaluation; receiver-side inflow is ignored. The amount rule
// is a strict comparison against AmountThreshold.
func (d *Detector) Evaluate(ctx context.Context, accountID int32, amount decimal.Decimal, txType domain.TransactionType) (bool, error) {
	if amount.GreaterThan(d.params.AmountThreshold) {
		return true, nil
	}

	since := time.Now().Add(-d.params.RateWindow)

	recent, err := d.log.CountSenderSince(ctx, accountID, since)
	if err != nil {
		return false, err
	}

	return recent+1 > d.params.RateThreshold, nil
}

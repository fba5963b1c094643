// Package ledgerdelivery manages delivery layer of the ledger operations.
package ledgerdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vkuzn/wallet-ledger/internal/domain"
	"github.com/vkuzn/wallet-ledger/internal/middleware"
	"github.com/vkuzn/wallet-ledger/pkg/errorspkg"
	"github.com/vkuzn/wallet-ledger/pkg/tokenpkg"
	"github.com/vkuzn/wallet-ledger/pkg/web"
)

// Service provides the ledger engine interface needed by the delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	Deposit(ctx context.Context, accountID int32, amount string) (domain.OperationResult, error)
	Withdraw(ctx context.Context, accountID int32, amount string) (domain.OperationResult, error)
	Transfer(ctx context.Context, senderID int32, recipientIdentifier, amount string) (domain.OperationResult, error)
	ListTransactions(ctx context.Context, accountID int32) ([]domain.Transaction, error)
}

// AccountResolver resolves the authenticated caller to their account.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type AccountResolver interface {
	GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service  Service
	accounts AccountResolver
}

// NewHandler returns ledger handler.
func NewHandler(ls Service, ar AccountResolver) *Handler {
	return &Handler{
		service:  ls,
		accounts: ar,
	}
}

func (h *Handler) callerAccount(gctx *gin.Context) (domain.Account, bool) {
	ctx := gctx.Request.Context()

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	account, err := h.accounts.GetByIdentifier(ctx, authPayload.Username)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return account, false
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return account, false
	}

	return account, true
}

func bindJSON(gctx *gin.Context, req any) bool {
	l := zerolog.Ctx(gctx.Request.Context())

	if err := gctx.ShouldBindJSON(req); err != nil {
		l.Info().Err(err).Send()

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})

			return false
		}

		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return false
	}

	return true
}

func writeOperationError(gctx *gin.Context, err error) {
	switch err {
	case domain.ErrInvalidAmount, domain.ErrInsufficientBalance:
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case domain.ErrRecipientNotFound, domain.ErrAccountNotFound:
		gctx.JSON(http.StatusNotFound, web.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

type txnResponse struct {
	ID        int64                  `json:"id"`
	Type      domain.TransactionType `json:"type"`
	Amount    string                 `json:"amount"`
	Timestamp time.Time              `json:"timestamp"`
	Flagged   bool                   `json:"flagged"`
}

func newTxnResponse(txn domain.Transaction) txnResponse {
	return txnResponse{
		ID:        txn.ID,
		Type:      txn.Type,
		Amount:    txn.Amount,
		Timestamp: txn.CreatedAt,
		Flagged:   txn.Flagged,
	}
}

type operationData struct {
	Balance     string      `json:"balance"`
	Transaction txnResponse `json:"transaction"`
}

type operationResponse struct {
	Data operationData `json:"data"`
}

func writeOperationResult(gctx *gin.Context, result domain.OperationResult) {
	gctx.JSON(http.StatusOK, operationResponse{
		Data: operationData{
			Balance:     result.Sender.Balance,
			Transaction: newTxnResponse(result.Transaction),
		},
	})
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// Deposit handles http request to deposit funds into the caller's account.
func (h *Handler) Deposit(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req amountRequest
	if !bindJSON(gctx, &req) {
		return
	}

	account, ok := h.callerAccount(gctx)
	if !ok {
		return
	}

	result, err := h.service.Deposit(ctx, account.ID, req.Amount)
	if err != nil {
		writeOperationError(gctx, err)
		return
	}

	writeOperationResult(gctx, result)
}

// Withdraw handles http request to withdraw funds from the caller's account.
func (h *Handler) Withdraw(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req amountRequest
	if !bindJSON(gctx, &req) {
		return
	}

	account, ok := h.callerAccount(gctx)
	if !ok {
		return
	}

	result, err := h.service.Withdraw(ctx, account.ID, req.Amount)
	if err != nil {
		writeOperationError(gctx, err)
		return
	}

	writeOperationResult(gctx, result)
}

type transferRequest struct {
	To     string `json:"to" binding:"required,identifier"`
	Amount string `json:"amount" binding:"required"`
}

// Transfer handles http request to transfer funds from the caller's account
// to the account resolved by the recipient identifier.
func (h *Handler) Transfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req transferRequest
	if !bindJSON(gctx, &req) {
		return
	}

	account, ok := h.callerAccount(gctx)
	if !ok {
		return
	}

	result, err := h.service.Transfer(ctx, account.ID, req.To, req.Amount)
	if err != nil {
		writeOperationError(gctx, err)
		return
	}

	writeOperationResult(gctx, result)
}

type transactionsData struct {
	Transactions []txnResponse `json:"transactions"`
}

type transactionsResponse struct {
	Data transactionsData `json:"data"`
}

// ListTransactions handles http request to list the caller's transactions,
// ordered by id ascending.
func (h *Handler) ListTransactions(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	account, ok := h.callerAccount(gctx)
	if !ok {
		return
	}

	txns, err := h.service.ListTransactions(ctx, account.ID)
	if err != nil {
		writeOperationError(gctx, err)
		return
	}

	items := make([]txnResponse, 0, len(txns))
	for _, txn := range txns {
		items = append(items, newTxnResponse(txn))
	}

	gctx.JSON(http.StatusOK, transactionsResponse{
		Data: transactionsData{Transactions: items},
	})
}

// Package reportdelivery manages delivery layer of administrative reports.
package reportdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vkuzn/wallet-ledger/internal/domain"
	"github.com/vkuzn/wallet-ledger/pkg/errorspkg"
	"github.com/vkuzn/wallet-ledger/pkg/web"
)

// DefaultTopAccounts is the number of accounts the stats report returns
// unless overridden by the request.
const DefaultTopAccounts = 5

// Service provides service layer interface needed by report delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package reportdelivery
type Service interface {
	Stats(ctx context.Context, topN int32) (domain.Stats, error)
	Flagged(ctx context.Context) ([]domain.Transaction, error)
}

// Handler facilitates report delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns report handler.
func NewHandler(rs Service) *Handler {
	return &Handler{
		service: rs,
	}
}

type flaggedItem struct {
	ID       int64                  `json:"id"`
	SenderID int32                  `json:"sender_id"`
	Amount   string                 `json:"amount"`
	Type     domain.TransactionType `json:"type"`
}

type flaggedData struct {
	Flagged []flaggedItem `json:"flagged"`
}

type flaggedResponse struct {
	Data flaggedData `json:"data"`
}

// Flagged handles http request to list all flagged transactions.
func (h *Handler) Flagged(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	txns, err := h.service.Flagged(ctx)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	items := make([]flaggedItem, 0, len(txns))
	for _, txn := range txns {
		items = append(items, flaggedItem{
			ID:       txn.ID,
			SenderID: txn.SenderID,
			Amount:   txn.Amount,
			Type:     txn.Type,
		})
	}

	gctx.JSON(http.StatusOK, flaggedResponse{Data: flaggedData{Flagged: items}})
}

type statsRequest struct {
	Top int32 `form:"top" binding:"omitempty,min=1,max=100"`
}

type statsResponse struct {
	Data domain.Stats `json:"data"`
}

// Stats handles http request for the administrative totals report.
func (h *Handler) Stats(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req statsRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	if req.Top == 0 {
		req.Top = DefaultTopAccounts
	}

	stats, err := h.service.Stats(ctx, req.Top)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, statsResponse{Data: stats})
}

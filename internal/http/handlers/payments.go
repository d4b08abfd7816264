package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentora-app/mentora-backend/internal/http/response"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/services"
)

// PaymentsHandler receives payment-gateway webhooks. The gateway
// authenticates with a shared secret, not a user token.
type PaymentsHandler struct {
	ledger        services.LedgerService
	webhookSecret string
}

func NewPaymentsHandler(ledger services.LedgerService, webhookSecret string) *PaymentsHandler {
	return &PaymentsHandler{ledger: ledger, webhookSecret: webhookSecret}
}

type purchaseCallbackReq struct {
	UserID  uuid.UUID `json:"user_id" binding:"required"`
	Credits int64     `json:"credits" binding:"required"`
}

// POST /api/payments/callback
func (h *PaymentsHandler) PurchaseCallback(c *gin.Context) {
	if h.webhookSecret == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	got := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}

	var req purchaseCallbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	newBalance, err := h.ledger.HandlePurchase(dbc, req.UserID, req.Credits)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "purchase_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"new_balance": newBalance})
}

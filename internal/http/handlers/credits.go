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

type CreditsHandler struct {
	ledger     services.LedgerService
	adminToken string
}

func NewCreditsHandler(ledger services.LedgerService, adminToken string) *CreditsHandler {
	return &CreditsHandler{ledger: ledger, adminToken: adminToken}
}

// GET /api/credits/balance
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	userID := callerID(c)
	if userID == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	// First sight of a user seeds the welcome bonus.
	if err := h.ledger.EnsureInitialized(dbc, *userID); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "balance_failed", err)
		return
	}
	balance, err := h.ledger.GetBalance(dbc, *userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "balance_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"balance": balance})
}

// GET /api/credits/history?limit=50
func (h *CreditsHandler) GetHistory(c *gin.Context) {
	userID := callerID(c)
	if userID == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	history, err := h.ledger.History(dbc, *userID, queryLimit(c))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"transactions": history})
}

type giftReq struct {
	UserIDs     []uuid.UUID `json:"user_ids" binding:"required"`
	Amount      int64       `json:"amount" binding:"required"`
	Description string      `json:"description"`
}

// POST /api/admin/credits/gift
func (h *CreditsHandler) GiftCredits(c *gin.Context) {
	if !h.adminAuthorized(c) {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	var req giftReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.ledger.GiftCredits(dbc, req.UserIDs, req.Amount, req.Description); err != nil {
		if errors.Is(err, apperrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "gift_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"gifted": len(req.UserIDs), "amount": req.Amount})
}

func (h *CreditsHandler) adminAuthorized(c *gin.Context) bool {
	if h.adminToken == "" {
		return false
	}
	got := c.GetHeader("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) == 1
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/http/response"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/ctxutil"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/services"
)

type ChatHandler struct {
	turns      services.TurnService
	transcript services.TranscriptService
}

func NewChatHandler(turns services.TurnService, transcript services.TranscriptService) *ChatHandler {
	return &ChatHandler{turns: turns, transcript: transcript}
}

type turnReq struct {
	ThreadID      *uuid.UUID `json:"thread_id"`
	Text          string     `json:"text"`
	AttachmentURL string     `json:"attachment_url"`
}

// POST /api/chat/turns
func (h *ChatHandler) SubmitTurn(c *gin.Context) {
	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.turns.ExecuteTurn(dbc, services.TurnInput{
		UserID:        callerID(c),
		ThreadID:      req.ThreadID,
		Text:          req.Text,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		respondTurnError(c, err)
		return
	}

	payload := gin.H{
		"outcome":  res.Outcome,
		"thread":   res.Thread,
		"messages": res.Messages,
	}
	if res.NewBalance != nil {
		payload["new_balance"] = *res.NewBalance
	}
	if res.BillingWarning != "" {
		payload["billing_warning"] = res.BillingWarning
	}

	switch res.Outcome {
	case services.TurnOutcomeInsufficientCredits:
		c.JSON(http.StatusPaymentRequired, payload)
	case services.TurnOutcomeFailed:
		c.JSON(http.StatusBadGateway, payload)
	default:
		response.RespondOK(c, payload)
	}
}

// GET /api/chat/threads?limit=50
func (h *ChatHandler) ListThreads(c *gin.Context) {
	userID := callerID(c)
	if userID == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	threads, err := h.transcript.ListThreads(dbc, *userID, queryLimit(c))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_threads_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"threads": threads})
}

// GET /api/chat/threads/:id?limit=50
func (h *ChatHandler) GetThread(c *gin.Context) {
	thread, ok := h.ownedThread(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.transcript.ListVisible(dbc, thread.ID, queryLimit(c))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_messages_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread, "messages": msgs})
}

// GET /api/chat/threads/:id/messages?limit=50
func (h *ChatHandler) ListMessages(c *gin.Context) {
	thread, ok := h.ownedThread(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.transcript.ListVisible(dbc, thread.ID, queryLimit(c))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_messages_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// ownedThread loads the :id thread and enforces ownership. Anonymous threads
// are readable by anyone holding the thread id.
func (h *ChatHandler) ownedThread(c *gin.Context) (*types.ConversationThread, bool) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return nil, false
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	th, err := h.transcript.GetThread(dbc, threadID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "thread_not_found", err)
		} else {
			response.RespondError(c, http.StatusInternalServerError, "thread_lookup_failed", err)
		}
		return nil, false
	}
	if th.UserID != nil {
		caller := callerID(c)
		if caller == nil || *caller != *th.UserID {
			response.RespondError(c, http.StatusForbidden, "forbidden", apperrors.ErrUnauthorized)
			return nil, false
		}
	}
	return th, true
}

func respondTurnError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		response.RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, apperrors.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "thread_not_found", err)
	case errors.Is(err, apperrors.ErrTurnInProgress):
		response.RespondError(c, http.StatusConflict, "turn_in_progress", err)
	case errors.Is(err, apperrors.ErrLedgerUnavailable):
		response.RespondError(c, http.StatusServiceUnavailable, "ledger_unavailable", err)
	default:
		response.RespondError(c, http.StatusInternalServerError, "turn_failed", err)
	}
}

func callerID(c *gin.Context) *uuid.UUID {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return nil
	}
	id := rd.UserID
	return &id
}

func queryLimit(c *gin.Context) int {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return limit
}

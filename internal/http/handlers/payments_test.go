package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/services"
)

// fakeLedger records purchase callbacks; everything else is unused by these
// handlers' tests.
type fakeLedger struct {
	services.LedgerService
	purchases []int64
	lastUser  uuid.UUID
}

func (f *fakeLedger) HandlePurchase(dbc dbctx.Context, userID uuid.UUID, creditAmount int64) (int64, error) {
	f.purchases = append(f.purchases, creditAmount)
	f.lastUser = userID
	return types.DefaultStartingBalance + creditAmount, nil
}

func postCallback(r *gin.Engine, secret string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPurchaseCallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &fakeLedger{}
	h := NewPaymentsHandler(ledger, "hook-secret")
	r := gin.New()
	r.POST("/api/payments/callback", h.PurchaseCallback)

	userID := uuid.New()
	body := gin.H{"user_id": userID, "credits": 300}

	// Missing or wrong secret is refused before touching the ledger.
	require.Equal(t, http.StatusUnauthorized, postCallback(r, "", body).Code)
	require.Equal(t, http.StatusUnauthorized, postCallback(r, "wrong", body).Code)
	require.Empty(t, ledger.purchases)

	// Malformed body.
	require.Equal(t, http.StatusBadRequest, postCallback(r, "hook-secret", gin.H{"credits": 300}).Code)

	// Valid callback credits the user.
	w := postCallback(r, "hook-secret", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []int64{300}, ledger.purchases)
	require.Equal(t, userID, ledger.lastUser)

	var resp struct {
		NewBalance int64 `json:"new_balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, types.DefaultStartingBalance+300, resp.NewBalance)
}

func TestPurchaseCallbackDisabledWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &fakeLedger{}
	h := NewPaymentsHandler(ledger, "")
	r := gin.New()
	r.POST("/api/payments/callback", h.PurchaseCallback)

	w := postCallback(r, "", gin.H{"user_id": uuid.New(), "credits": 10})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, ledger.purchases)
}

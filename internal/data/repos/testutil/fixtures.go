package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mentora-app/mentora-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, displayName string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:              uuid.New(),
		DisplayName:     displayName,
		ExpertiseLevel:  "beginner",
		Interests:       datatypes.JSON([]byte(`[]`)),
		PreferredTopics: datatypes.JSON([]byte(`[]`)),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedAccount(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, balance int64) *types.CreditAccount {
	tb.Helper()
	a := &types.CreditAccount{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: balance,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed credit account: %v", err)
	}
	return a
}

func SeedThread(tb testing.TB, ctx context.Context, tx *gorm.DB, userID *uuid.UUID) *types.ConversationThread {
	tb.Helper()
	th := &types.ConversationThread{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         "thread",
		LastMessageAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(th).Error; err != nil {
		tb.Fatalf("seed thread: %v", err)
	}
	return th
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/mentora-app/mentora-backend/internal/data/repos"
	"github.com/mentora-app/mentora-backend/internal/data/repos/testutil"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
)

func newPersonalizationForTest(t *testing.T) (PersonalizationService, dbctx.Context) {
	t.Helper()
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	log := testutil.Logger(t)
	svc := NewPersonalizationService(log, repos.NewUserRepo(gdb, log))
	return svc, dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func TestPersonalization_ResolveFullProfile(t *testing.T) {
	svc, dbc := newPersonalizationForTest(t)
	u := testutil.SeedUser(t, dbc.Ctx, dbc.Tx, "Dana")
	lastLogin := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, dbc.Tx.Model(u).Updates(map[string]interface{}{
		"expertise_level":  "advanced",
		"interests":        datatypes.JSON([]byte(`["robotics","go"]`)),
		"preferred_topics": datatypes.JSON([]byte(`["distributed systems"]`)),
		"notes":            "Prefers concrete examples.",
		"last_login_at":    lastLogin,
	}).Error)

	got := svc.Resolve(dbc, &u.ID)
	require.Contains(t, got, "The user's name is Dana.")
	require.Contains(t, got, "Their expertise level is advanced.")
	require.Contains(t, got, "They are interested in: robotics, go.")
	require.Contains(t, got, "They prefer discussing: distributed systems.")
	require.Contains(t, got, "Their last login was March 14, 2026.")
	require.Contains(t, got, "Additional notes about the user: Prefers concrete examples.")
}

func TestPersonalization_ResolveSparseProfile(t *testing.T) {
	svc, dbc := newPersonalizationForTest(t)
	u := testutil.SeedUser(t, dbc.Ctx, dbc.Tx, "")
	require.NoError(t, dbc.Tx.Model(u).Update("expertise_level", "").Error)

	got := svc.Resolve(dbc, &u.ID)
	require.Equal(t, "Their expertise level is unspecified.", got)
}

func TestPersonalization_ResolveAnonymous(t *testing.T) {
	svc, dbc := newPersonalizationForTest(t)
	require.Equal(t, anonymousContext, svc.Resolve(dbc, nil))

	nilID := uuid.Nil
	require.Equal(t, anonymousContext, svc.Resolve(dbc, &nilID))
}

func TestPersonalization_ResolveUnknownUserDegrades(t *testing.T) {
	svc, dbc := newPersonalizationForTest(t)
	unknown := uuid.New()
	require.Equal(t, anonymousContext, svc.Resolve(dbc, &unknown))
}

func TestPersonalization_DetectsPersonalQuery(t *testing.T) {
	svc, _ := newPersonalizationForTest(t)

	positive := []string{
		"What are my interests?",
		"do you remember my preferences",
		"Who am I?",
		"Do you know me?",
		"what do you know about me",
		"Tell me about me",
		"do you remember me",
		"What's my name?",
	}
	for _, q := range positive {
		require.True(t, svc.DetectsPersonalQuery(q), "expected personal query: %q", q)
	}

	negative := []string{
		"",
		"Explain goroutines like I'm new to this",
		"What is the capital of France?",
		// "my" only counts when it names a profile field.
		"my dog ate my homework, what now",
	}
	for _, q := range negative {
		require.False(t, svc.DetectsPersonalQuery(q), "unexpected personal query: %q", q)
	}
}

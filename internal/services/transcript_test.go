package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentora-app/mentora-backend/internal/data/repos"
	"github.com/mentora-app/mentora-backend/internal/data/repos/testutil"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
)

func newTranscriptForTest(t *testing.T) (TranscriptService, dbctx.Context) {
	t.Helper()
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	log := testutil.Logger(t)
	svc := NewTranscriptService(log, gdb,
		repos.NewConversationThreadRepo(gdb, log),
		repos.NewChatMessageRepo(gdb, log),
	)
	return svc, dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func TestTranscript_AppendAssignsContiguousSeqs(t *testing.T) {
	svc, dbc := newTranscriptForTest(t)
	u := testutil.SeedUser(t, dbc.Ctx, dbc.Tx, "Dana")
	th, err := svc.CreateThread(dbc, &u.ID, "seq ordering")
	require.NoError(t, err)

	first, err := svc.Append(dbc, th.ID, []MessageDraft{
		{Role: types.RoleSystemGuidance, Content: "context"},
		{Role: types.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, int64(0), first[0].Seq)
	require.Equal(t, int64(1), first[1].Seq)

	second, err := svc.Append(dbc, th.ID, []MessageDraft{
		{Role: types.RoleAssistant, Content: "hi there"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), second[0].Seq)

	all, err := svc.List(dbc, th.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, m := range all {
		require.Equal(t, int64(i), m.Seq)
	}
}

func TestTranscript_ListVisibleHidesGuidance(t *testing.T) {
	svc, dbc := newTranscriptForTest(t)
	th, err := svc.CreateThread(dbc, nil, "guidance filtering")
	require.NoError(t, err)

	_, err = svc.Append(dbc, th.ID, []MessageDraft{
		{Role: types.RoleSystemGuidance, Content: "profile briefing"},
		{Role: types.RoleUser, Content: "question"},
		{Role: types.RoleAssistant, Content: "answer"},
	})
	require.NoError(t, err)

	visible, err := svc.ListVisible(dbc, th.ID, 0)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	require.Equal(t, types.RoleUser, visible[0].Role)
	require.Equal(t, types.RoleAssistant, visible[1].Role)

	all, err := svc.List(dbc, th.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestTranscript_AppendEmptyIsNoop(t *testing.T) {
	svc, dbc := newTranscriptForTest(t)
	th, err := svc.CreateThread(dbc, nil, "noop")
	require.NoError(t, err)

	out, err := svc.Append(dbc, th.ID, nil)
	require.NoError(t, err)
	require.Empty(t, out)

	fresh, err := svc.GetThread(dbc, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), fresh.NextSeq)
}

func TestTranscript_BindRemoteThread(t *testing.T) {
	svc, dbc := newTranscriptForTest(t)
	th, err := svc.CreateThread(dbc, nil, "binding")
	require.NoError(t, err)

	require.NoError(t, svc.BindRemoteThread(dbc, th.ID, "thread_abc"))
	// Rebinding to the same id is idempotent.
	require.NoError(t, svc.BindRemoteThread(dbc, th.ID, "thread_abc"))
	// A different id is refused.
	err = svc.BindRemoteThread(dbc, th.ID, "thread_xyz")
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	fresh, err := svc.GetThread(dbc, th.ID)
	require.NoError(t, err)
	require.Equal(t, "thread_abc", fresh.RemoteThreadID)
}

func TestTranscript_ListThreadsNewestFirst(t *testing.T) {
	svc, dbc := newTranscriptForTest(t)
	u := testutil.SeedUser(t, dbc.Ctx, dbc.Tx, "Dana")

	a, err := svc.CreateThread(dbc, &u.ID, "first")
	require.NoError(t, err)
	b, err := svc.CreateThread(dbc, &u.ID, "second")
	require.NoError(t, err)

	// A message on the older thread bumps it to the front.
	_, err = svc.Append(dbc, a.ID, []MessageDraft{{Role: types.RoleUser, Content: "bump"}})
	require.NoError(t, err)

	threads, err := svc.ListThreads(dbc, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	require.Equal(t, a.ID, threads[0].ID)
	require.Equal(t, b.ID, threads[1].ID)
}

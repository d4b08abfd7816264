package chat

import (
	"context"
	"testing"

	"github.com/mentora-app/mentora-backend/internal/data/repos/testutil"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
)

func TestThreadRepo_ClaimSeq(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewThreadRepo(db, testutil.Logger(t))
	u := testutil.SeedUser(t, ctx, tx, "seq")
	th := testutil.SeedThread(t, ctx, tx, testutil.PtrUUID(u.ID))

	first, err := repo.ClaimSeq(dbc, th.ID, 2)
	if err != nil {
		t.Fatalf("ClaimSeq: %v", err)
	}
	if first != 0 {
		t.Fatalf("ClaimSeq: got first=%d, want 0", first)
	}

	second, err := repo.ClaimSeq(dbc, th.ID, 3)
	if err != nil {
		t.Fatalf("ClaimSeq (second): %v", err)
	}
	if second != 2 {
		t.Fatalf("ClaimSeq: got first=%d, want 2", second)
	}

	got, err := repo.GetByID(dbc, th.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.NextSeq != 5 {
		t.Fatalf("NextSeq: got %d, want 5", got.NextSeq)
	}
}

func TestThreadRepo_SetRemoteThreadID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewThreadRepo(db, testutil.Logger(t))
	th := testutil.SeedThread(t, ctx, tx, nil)

	if err := repo.SetRemoteThreadID(dbc, th.ID, "thread_abc123"); err != nil {
		t.Fatalf("SetRemoteThreadID: %v", err)
	}
	got, err := repo.GetByID(dbc, th.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RemoteThreadID != "thread_abc123" {
		t.Fatalf("RemoteThreadID: got %q", got.RemoteThreadID)
	}
}

func TestMessageRepo_VisibleListingExcludesGuidance(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	threads := NewThreadRepo(db, testutil.Logger(t))
	messages := NewMessageRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "vis")
	th := testutil.SeedThread(t, ctx, tx, testutil.PtrUUID(u.ID))

	first, err := threads.ClaimSeq(dbc, th.ID, 3)
	if err != nil {
		t.Fatalf("ClaimSeq: %v", err)
	}
	if _, err := messages.Append(dbc, []*types.ChatMessage{
		{ThreadID: th.ID, Seq: first, Role: types.RoleSystemGuidance, Content: "user briefing"},
		{ThreadID: th.ID, Seq: first + 1, Role: types.RoleUser, Content: "hello"},
		{ThreadID: th.ID, Seq: first + 2, Role: types.RoleAssistant, Content: "hi there"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := messages.ListByThread(dbc, th.ID, 10)
	if err != nil {
		t.Fatalf("ListByThread: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListByThread: got %d rows, want 3", len(all))
	}
	if all[0].Seq != 0 || all[2].Seq != 2 {
		t.Fatalf("ListByThread: expected oldest-first seq order, got %d..%d", all[0].Seq, all[2].Seq)
	}

	visible, err := messages.ListVisibleByThread(dbc, th.ID, 10)
	if err != nil {
		t.Fatalf("ListVisibleByThread: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("ListVisibleByThread: got %d rows, want 2", len(visible))
	}
	for _, m := range visible {
		if m.Role == types.RoleSystemGuidance {
			t.Fatalf("ListVisibleByThread: guidance message leaked: %+v", m)
		}
	}
}

func TestMessageRepo_RejectsUnknownRole(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	messages := NewMessageRepo(db, testutil.Logger(t))
	th := testutil.SeedThread(t, ctx, tx, nil)

	if _, err := messages.Append(dbc, []*types.ChatMessage{
		{ThreadID: th.ID, Seq: 0, Role: "narrator", Content: "x"},
	}); err == nil {
		t.Fatalf("Append: expected error for unknown role")
	}
}

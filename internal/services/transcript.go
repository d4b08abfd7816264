package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mentora-app/mentora-backend/internal/data/repos"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// MessageDraft is one message to append to a thread. Seq and ID are assigned
// by the store.
type MessageDraft struct {
	Role          string
	Content       string
	AttachmentURL string
	Metadata      datatypes.JSON
}

// TranscriptService owns the local record of conversations. Every message a
// turn produces lands here in thread order, including system guidance rows
// that listings never surface.
type TranscriptService interface {
	CreateThread(dbc dbctx.Context, userID *uuid.UUID, title string) (*types.ConversationThread, error)
	GetThread(dbc dbctx.Context, threadID uuid.UUID) (*types.ConversationThread, error)
	ListThreads(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ConversationThread, error)

	// BindRemoteThread records the backend thread id once, on first contact
	// with the backend. Rebinding an already bound thread to a different id
	// is refused.
	BindRemoteThread(dbc dbctx.Context, threadID uuid.UUID, remoteThreadID string) error

	// Append atomically claims a contiguous seq range on the thread and
	// writes the drafts in order. Concurrent appenders interleave whole
	// batches, never individual rows.
	Append(dbc dbctx.Context, threadID uuid.UUID, drafts []MessageDraft) ([]*types.ChatMessage, error)

	// List returns the full transcript in seq order, guidance included.
	List(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error)

	// ListVisible returns the transcript a user may see: guidance rows are
	// filtered at the query, not post hoc.
	ListVisible(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error)
}

type transcriptService struct {
	log      *logger.Logger
	db       *gorm.DB
	threads  repos.ConversationThreadRepo
	messages repos.ChatMessageRepo
}

func NewTranscriptService(
	baseLog *logger.Logger,
	db *gorm.DB,
	threads repos.ConversationThreadRepo,
	messages repos.ChatMessageRepo,
) TranscriptService {
	return &transcriptService{
		log:      baseLog.With("service", "TranscriptService"),
		db:       db,
		threads:  threads,
		messages: messages,
	}
}

func (s *transcriptService) CreateThread(dbc dbctx.Context, userID *uuid.UUID, title string) (*types.ConversationThread, error) {
	row := &types.ConversationThread{
		UserID: userID,
		Title:  title,
	}
	created, err := s.threads.Create(dbc, []*types.ConversationThread{row})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	s.log.Info("thread created", "thread_id", created[0].ID, "anonymous", userID == nil)
	return created[0], nil
}

func (s *transcriptService) GetThread(dbc dbctx.Context, threadID uuid.UUID) (*types.ConversationThread, error) {
	return s.threads.GetByID(dbc, threadID)
}

func (s *transcriptService) ListThreads(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ConversationThread, error) {
	return s.threads.ListByUser(dbc, userID, limit)
}

func (s *transcriptService) BindRemoteThread(dbc dbctx.Context, threadID uuid.UUID, remoteThreadID string) error {
	th, err := s.threads.GetByID(dbc, threadID)
	if err != nil {
		return err
	}
	if th.RemoteThreadID == remoteThreadID {
		return nil
	}
	if th.RemoteThreadID != "" {
		return fmt.Errorf("thread %s already bound to a backend thread: %w", threadID, apperrors.ErrInvalidArgument)
	}
	return s.threads.SetRemoteThreadID(dbc, threadID, remoteThreadID)
}

func (s *transcriptService) Append(dbc dbctx.Context, threadID uuid.UUID, drafts []MessageDraft) ([]*types.ChatMessage, error) {
	if len(drafts) == 0 {
		return []*types.ChatMessage{}, nil
	}
	var out []*types.ChatMessage
	err := s.inTx(dbc, func(txc dbctx.Context) error {
		first, err := s.threads.ClaimSeq(txc, threadID, len(drafts))
		if err != nil {
			return err
		}
		rows := make([]*types.ChatMessage, 0, len(drafts))
		for i, d := range drafts {
			rows = append(rows, &types.ChatMessage{
				ThreadID:      threadID,
				Seq:           first + int64(i),
				Role:          d.Role,
				Content:       d.Content,
				AttachmentURL: d.AttachmentURL,
				Metadata:      d.Metadata,
			})
		}
		out, err = s.messages.Append(txc, rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append to thread %s: %w", threadID, err)
	}
	return out, nil
}

func (s *transcriptService) List(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	return s.messages.ListByThread(dbc, threadID, limit)
}

func (s *transcriptService) ListVisible(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	return s.messages.ListVisibleByThread(dbc, threadID, limit)
}

// inTx runs fn inside the caller's transaction when one is present, otherwise
// opens its own so the seq claim and the inserts commit together.
func (s *transcriptService) inTx(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
	})
}

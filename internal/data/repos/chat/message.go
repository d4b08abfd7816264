package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

type MessageRepo interface {
	Append(dbc dbctx.Context, rows []*types.ChatMessage) ([]*types.ChatMessage, error)
	ListByThread(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error)

	// ListVisibleByThread excludes system_guidance rows at the query, so no
	// caller can accidentally render an injected guidance payload.
	ListVisibleByThread(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *messageRepo) Append(dbc dbctx.Context, rows []*types.ChatMessage) ([]*types.ChatMessage, error) {
	if len(rows) == 0 {
		return []*types.ChatMessage{}, nil
	}
	for _, row := range rows {
		if row.ThreadID == uuid.Nil {
			return nil, fmt.Errorf("missing thread_id: %w", apperrors.ErrInvalidArgument)
		}
		switch row.Role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystemGuidance:
		default:
			return nil, fmt.Errorf("unknown role %q: %w", row.Role, apperrors.ErrInvalidArgument)
		}
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *messageRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	return r.list(dbc, threadID, limit, false)
}

func (r *messageRepo) ListVisibleByThread(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	return r.list(dbc, threadID, limit, true)
}

func (r *messageRepo) list(dbc dbctx.Context, threadID uuid.UUID, limit int, visibleOnly bool) ([]*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.ChatMessage{}).
		Where("thread_id = ?", threadID)
	if visibleOnly {
		q = q.Where("role <> ?", types.RoleSystemGuidance)
	}
	var out []*types.ChatMessage
	if err := q.Order("seq ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

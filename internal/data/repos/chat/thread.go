package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

type ThreadRepo interface {
	Create(dbc dbctx.Context, rows []*types.ConversationThread) ([]*types.ConversationThread, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ConversationThread, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ConversationThread, error)
	SetRemoteThreadID(dbc dbctx.Context, id uuid.UUID, remoteThreadID string) error

	// ClaimSeq reserves n consecutive sequence numbers on the thread and
	// returns the first one. The reservation is a single UPDATE ... RETURNING
	// statement, so concurrent appenders never receive overlapping ranges.
	ClaimSeq(dbc dbctx.Context, id uuid.UUID, n int) (int64, error)
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: baseLog.With("repo", "ConversationThreadRepo")}
}

func (r *threadRepo) Create(dbc dbctx.Context, rows []*types.ConversationThread) ([]*types.ConversationThread, error) {
	if len(rows) == 0 {
		return []*types.ConversationThread{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.Title == "" {
			row.Title = "New chat"
		}
		if row.LastMessageAt.IsZero() {
			row.LastMessageAt = now
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

func (r *threadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ConversationThread, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ConversationThread
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ConversationThread, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ConversationThread
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ConversationThread{}).
		Where("user_id = ?", userID).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *threadRepo) SetRemoteThreadID(dbc dbctx.Context, id uuid.UUID, remoteThreadID string) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id: %w", apperrors.ErrInvalidArgument)
	}
	if remoteThreadID == "" {
		return fmt.Errorf("missing remote_thread_id: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.ConversationThread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"remote_thread_id": remoteThreadID,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *threadRepo) ClaimSeq(dbc dbctx.Context, id uuid.UUID, n int) (int64, error) {
	if id == uuid.Nil {
		return 0, fmt.Errorf("missing id: %w", apperrors.ErrInvalidArgument)
	}
	if n <= 0 {
		return 0, fmt.Errorf("claim size must be positive: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	var after int64
	res := txx.WithContext(dbc.Ctx).Raw(
		`UPDATE conversation_thread
		 SET next_seq = next_seq + ?, last_message_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL
		 RETURNING next_seq`,
		n, now, now, id,
	).Scan(&after)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.ErrNotFound
	}
	return after - int64(n), nil
}

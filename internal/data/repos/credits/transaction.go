package credits

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// TransactionRepo is append-only. Nothing here updates or deletes rows: the
// transaction history is the ledger's source of truth.
type TransactionRepo interface {
	Append(dbc dbctx.Context, rows []*types.CreditTransaction) ([]*types.CreditTransaction, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.CreditTransaction, error)
	SumByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	CountByUserAndType(dbc dbctx.Context, userID uuid.UUID, txType types.TransactionType) (int64, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionRepo(db *gorm.DB, baseLog *logger.Logger) TransactionRepo {
	return &transactionRepo{db: db, log: baseLog.With("repo", "CreditTransactionRepo")}
}

func (r *transactionRepo) Append(dbc dbctx.Context, rows []*types.CreditTransaction) ([]*types.CreditTransaction, error) {
	if len(rows) == 0 {
		return []*types.CreditTransaction{}, nil
	}
	for _, row := range rows {
		if row.UserID == uuid.Nil {
			return nil, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
		}
		if !row.Type.Valid() {
			return nil, fmt.Errorf("unknown transaction type %q: %w", row.Type, apperrors.ErrInvalidArgument)
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

// ListByUser returns transactions newest first.
func (r *transactionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.CreditTransaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.CreditTransaction
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.CreditTransaction{}).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *transactionRepo) SumByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var total int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *transactionRepo) CountByUserAndType(dbc dbctx.Context, userID uuid.UUID, txType types.TransactionType) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.CreditTransaction{}).
		Where("user_id = ? AND type = ?", userID, txType).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

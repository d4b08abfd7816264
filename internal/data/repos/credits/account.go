package credits

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// AccountRepo owns the credit_account row. All mutations are conditional
// single-statement updates so two concurrent actors can never interleave a
// read-balance-then-write-balance sequence.
type AccountRepo interface {
	// CreateIfAbsent inserts an account with the given starting balance.
	// Reports whether the insert took effect; a concurrent or earlier insert
	// for the same user leaves the existing row untouched.
	CreateIfAbsent(dbc dbctx.Context, userID uuid.UUID, startingBalance int64) (bool, error)

	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.CreditAccount, error)

	// Balance returns 0 for an unknown user without creating an account.
	Balance(dbc dbctx.Context, userID uuid.UUID) (int64, error)

	// ApplyDelta atomically adds delta to the balance, refusing any change
	// that would drive it below zero. Reports whether the update took effect.
	ApplyDelta(dbc dbctx.Context, userID uuid.UUID, delta int64) (bool, error)
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return &accountRepo{db: db, log: baseLog.With("repo", "CreditAccountRepo")}
}

func (r *accountRepo) CreateIfAbsent(dbc dbctx.Context, userID uuid.UUID, startingBalance int64) (bool, error) {
	if userID == uuid.Nil {
		return false, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	if startingBalance < 0 {
		return false, fmt.Errorf("negative starting balance: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	row := &types.CreditAccount{
		UserID:  userID,
		Balance: startingBalance,
	}
	res := txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *accountRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.CreditAccount, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.CreditAccount
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *accountRepo) Balance(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	acct, err := r.GetByUserID(dbc, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return acct.Balance, nil
}

func (r *accountRepo) ApplyDelta(dbc dbctx.Context, userID uuid.UUID, delta int64) (bool, error) {
	if userID == uuid.Nil {
		return false, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&types.CreditAccount{}).
		Where("user_id = ? AND balance + ? >= 0", userID, delta).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentora-app/mentora-backend/internal/data/repos"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// LedgerService is the single authority on whether a user may start a
// billable action and on recording the result. Balance checks outside a
// mutation are advisory only; the binding sufficiency check happens inside
// Debit's conditional update.
type LedgerService interface {
	// EnsureInitialized idempotently seeds a new account with the default
	// starting balance and a welcome-bonus transaction. Safe under
	// concurrent first use by the same user.
	EnsureInitialized(dbc dbctx.Context, userID uuid.UUID) error

	// GetBalance returns 0 for an unknown user without creating an account.
	GetBalance(dbc dbctx.Context, userID uuid.UUID) (int64, error)

	// HasSufficientBalance is advisory: passing it does not reserve credits.
	HasSufficientBalance(dbc dbctx.Context, userID uuid.UUID, cost int64) (bool, error)

	// Debit atomically re-checks sufficiency and decrements in one storage
	// transaction. ErrInsufficientCredits means nothing was mutated.
	Debit(dbc dbctx.Context, userID uuid.UUID, cost int64, txType types.TransactionType, description string) (int64, error)

	// Credit atomically increments and appends a transaction; amount > 0.
	Credit(dbc dbctx.Context, userID uuid.UUID, amount int64, txType types.TransactionType, description string) (int64, error)

	// History returns transactions newest first.
	History(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.CreditTransaction, error)

	// HandlePurchase is the payment-gateway callback target.
	HandlePurchase(dbc dbctx.Context, userID uuid.UUID, creditAmount int64) (int64, error)

	// GiftCredits applies an admin gift to one or more users.
	GiftCredits(dbc dbctx.Context, userIDs []uuid.UUID, amount int64, description string) error
}

const (
	ledgerMaxAttempts = 3
	ledgerBackoff     = 50 * time.Millisecond
)

type ledgerService struct {
	db       *gorm.DB
	log      *logger.Logger
	accounts repos.CreditAccountRepo
	txns     repos.CreditTransactionRepo
}

func NewLedgerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	accountRepo repos.CreditAccountRepo,
	transactionRepo repos.CreditTransactionRepo,
) LedgerService {
	return &ledgerService{
		db:       db,
		log:      baseLog.With("service", "LedgerService"),
		accounts: accountRepo,
		txns:     transactionRepo,
	}
}

func (s *ledgerService) EnsureInitialized(dbc dbctx.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	return s.inTx(dbc, func(txc dbctx.Context) error {
		return s.ensureInitialized(txc, userID)
	})
}

func (s *ledgerService) ensureInitialized(txc dbctx.Context, userID uuid.UUID) error {
	created, err := s.accounts.CreateIfAbsent(txc, userID, types.DefaultStartingBalance)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	_, err = s.txns.Append(txc, []*types.CreditTransaction{{
		UserID:      userID,
		Amount:      types.DefaultStartingBalance,
		Type:        types.TxWelcomeBonus,
		Description: "Welcome bonus",
	}})
	return err
}

func (s *ledgerService) GetBalance(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	return s.accounts.Balance(dbc, userID)
}

func (s *ledgerService) HasSufficientBalance(dbc dbctx.Context, userID uuid.UUID, cost int64) (bool, error) {
	balance, err := s.GetBalance(dbc, userID)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

func (s *ledgerService) Debit(dbc dbctx.Context, userID uuid.UUID, cost int64, txType types.TransactionType, description string) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	if cost <= 0 {
		return 0, fmt.Errorf("debit cost must be positive: %w", apperrors.ErrInvalidArgument)
	}
	var newBalance int64
	err := s.inTx(dbc, func(txc dbctx.Context) error {
		applied, err := s.accounts.ApplyDelta(txc, userID, -cost)
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.ErrInsufficientCredits
		}
		if _, err := s.txns.Append(txc, []*types.CreditTransaction{{
			UserID:      userID,
			Amount:      -cost,
			Type:        txType,
			Description: description,
		}}); err != nil {
			return err
		}
		newBalance, err = s.accounts.Balance(txc, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *ledgerService) Credit(dbc dbctx.Context, userID uuid.UUID, amount int64, txType types.TransactionType, description string) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id: %w", apperrors.ErrInvalidArgument)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive: %w", apperrors.ErrInvalidArgument)
	}
	var newBalance int64
	err := s.inTx(dbc, func(txc dbctx.Context) error {
		// First observation of a user seeds the account, so a purchase that
		// arrives before any chat turn still lands on a welcome-bonus base.
		if err := s.ensureInitialized(txc, userID); err != nil {
			return err
		}
		applied, err := s.accounts.ApplyDelta(txc, userID, amount)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("credit did not apply for user %s", userID)
		}
		if _, err := s.txns.Append(txc, []*types.CreditTransaction{{
			UserID:      userID,
			Amount:      amount,
			Type:        txType,
			Description: description,
		}}); err != nil {
			return err
		}
		newBalance, err = s.accounts.Balance(txc, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *ledgerService) History(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.CreditTransaction, error) {
	return s.txns.ListByUser(dbc, userID, limit)
}

func (s *ledgerService) HandlePurchase(dbc dbctx.Context, userID uuid.UUID, creditAmount int64) (int64, error) {
	newBalance, err := s.Credit(dbc, userID, creditAmount, types.TxPurchase,
		fmt.Sprintf("Purchased %d credits", creditAmount))
	if err != nil {
		return 0, err
	}
	s.log.Info("purchase credited", "user_id", userID, "amount", creditAmount, "new_balance", newBalance)
	return newBalance, nil
}

func (s *ledgerService) GiftCredits(dbc dbctx.Context, userIDs []uuid.UUID, amount int64, description string) error {
	if len(userIDs) == 0 {
		return fmt.Errorf("no users to gift: %w", apperrors.ErrInvalidArgument)
	}
	txType := types.TxAdminGift
	if len(userIDs) > 1 {
		txType = types.TxAdminBulkGift
	}
	if description == "" {
		description = "Admin credit gift"
	}
	for _, id := range userIDs {
		if _, err := s.Credit(dbc, id, amount, txType, description); err != nil {
			return fmt.Errorf("gift to %s: %w", id, err)
		}
	}
	return nil
}

// inTx runs fn in the caller's transaction when one is present, otherwise in
// a fresh transaction retried a bounded number of times on storage
// contention. Exhausted retries surface as ErrLedgerUnavailable.
func (s *ledgerService) inTx(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	var lastErr error
	for attempt := 1; attempt <= ledgerMaxAttempts; attempt++ {
		err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbc.WithTx(tx))
		})
		if err == nil {
			return nil
		}
		if !isRetryableStorageErr(err) {
			return err
		}
		lastErr = err
		s.log.Warn("ledger transaction contention, retrying", "attempt", attempt, "error", err)
		if dbc.Ctx != nil && dbc.Ctx.Err() != nil {
			break
		}
		time.Sleep(ledgerBackoff * time.Duration(attempt))
	}
	return fmt.Errorf("%w: %v", apperrors.ErrLedgerUnavailable, lastErr)
}

func isRetryableStorageErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrInsufficientCredits) || errors.Is(err, apperrors.ErrInvalidArgument) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

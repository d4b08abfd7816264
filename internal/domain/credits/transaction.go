package credits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType is the closed set of business reasons for a ledger entry.
type TransactionType string

const (
	TxWelcomeBonus      TransactionType = "welcome_bonus"
	TxPurchase          TransactionType = "purchase"
	TxChatMessage       TransactionType = "chat_message"
	TxImageAnalysis     TransactionType = "image_analysis"
	TxConferenceHosting TransactionType = "conference_hosting"
	TxAdminGift         TransactionType = "admin_gift"
	TxAdminBulkGift     TransactionType = "admin_bulk_gift"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxWelcomeBonus, TxPurchase, TxChatMessage, TxImageAnalysis,
		TxConferenceHosting, TxAdminGift, TxAdminBulkGift:
		return true
	}
	return false
}

// CreditTransaction is an immutable, append-only ledger entry. Amount is
// signed: debits are negative, credits positive.
type CreditTransaction struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Amount      int64           `gorm:"column:amount;not null" json:"amount"`
	Type        TransactionType `gorm:"column:type;not null;index" json:"type"`
	Description string          `gorm:"type:text;column:description" json:"description"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transaction" }

func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

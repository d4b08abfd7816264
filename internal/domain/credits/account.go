package credits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditAccount holds the cached balance projection for one user. The
// transaction history is the source of truth; balance must always equal the
// sum of the user's transaction amounts. Mutated only through conditional
// updates inside the ledger service.
type CreditAccount struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Balance int64     `gorm:"column:balance;not null;default:0" json:"balance"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CreditAccount) TableName() string { return "credit_account" }

func (a *CreditAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

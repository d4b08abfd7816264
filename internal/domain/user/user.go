package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DisplayName    string `gorm:"column:display_name" json:"display_name"`
	ExpertiseLevel string `gorm:"column:expertise_level" json:"expertise_level"`

	// JSON string arrays. Kept as jsonb so profile updates stay schemaless.
	Interests       datatypes.JSON `gorm:"type:jsonb;column:interests;not null;default:'[]'" json:"interests"`
	PreferredTopics datatypes.JSON `gorm:"type:jsonb;column:preferred_topics;not null;default:'[]'" json:"preferred_topics"`

	Notes       string     `gorm:"type:text;column:notes" json:"notes"`
	LastLoginAt *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "app_user" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

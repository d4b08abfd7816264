package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message roles. RoleSystemGuidance marks injected personalization payloads:
// they live in the transcript for auditability but are excluded from every
// rendered listing.
const (
	RoleUser           = "user"
	RoleAssistant      = "assistant"
	RoleSystemGuidance = "system_guidance"
)

// ChatMessage is one append-only transcript entry. Rows are never updated or
// deleted individually; threads are soft-deleted as a whole.
type ChatMessage struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_message_thread_seq,unique,priority:1" json:"thread_id"`

	Seq int64 `gorm:"column:seq;not null;index:idx_chat_message_thread_seq,unique,priority:2" json:"seq"`

	Role    string `gorm:"column:role;not null;index" json:"role"`
	Content string `gorm:"column:content;type:text;not null;default:''" json:"content"`

	AttachmentURL string         `gorm:"column:attachment_url" json:"attachment_url,omitempty"`
	Metadata      datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

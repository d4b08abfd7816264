package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationThread is the local record of one conversation. The backend's
// own thread (RemoteThreadID) is created lazily on the first turn and reused
// afterwards. UserID is nil for anonymous transcripts.
type ConversationThread struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`

	RemoteThreadID string `gorm:"column:remote_thread_id;index" json:"remote_thread_id,omitempty"`
	Title          string `gorm:"column:title;not null;default:'New chat'" json:"title"`

	// Concurrency-safe per-thread sequencing.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"next_seq"`

	LastMessageAt time.Time `gorm:"column:last_message_at;not null;index" json:"last_message_at"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConversationThread) TableName() string { return "conversation_thread" }

func (t *ConversationThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

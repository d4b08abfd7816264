package db

import (
	"gorm.io/gorm"

	types "github.com/mentora-app/mentora-backend/internal/domain"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.User{},

		&types.CreditAccount{},
		&types.CreditTransaction{},

		&types.ConversationThread{},
		&types.ChatMessage{},
	)
}

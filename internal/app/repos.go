package app

import (
	"gorm.io/gorm"

	"github.com/mentora-app/mentora-backend/internal/data/repos"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

type Repos struct {
	User               repos.UserRepo
	CreditAccount      repos.CreditAccountRepo
	CreditTransaction  repos.CreditTransactionRepo
	ConversationThread repos.ConversationThreadRepo
	ChatMessage        repos.ChatMessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:               repos.NewUserRepo(db, log),
		CreditAccount:      repos.NewCreditAccountRepo(db, log),
		CreditTransaction:  repos.NewCreditTransactionRepo(db, log),
		ConversationThread: repos.NewConversationThreadRepo(db, log),
		ChatMessage:        repos.NewChatMessageRepo(db, log),
	}
}

// Package repos re-exports the per-entity repository interfaces under one
// import for service constructors.
package repos

import (
	chatrepo "github.com/mentora-app/mentora-backend/internal/data/repos/chat"
	creditsrepo "github.com/mentora-app/mentora-backend/internal/data/repos/credits"
	userrepo "github.com/mentora-app/mentora-backend/internal/data/repos/user"
)

type (
	UserRepo = userrepo.UserRepo

	CreditAccountRepo     = creditsrepo.AccountRepo
	CreditTransactionRepo = creditsrepo.TransactionRepo

	ConversationThreadRepo = chatrepo.ThreadRepo
	ChatMessageRepo        = chatrepo.MessageRepo
)

var (
	NewUserRepo               = userrepo.NewUserRepo
	NewCreditAccountRepo      = creditsrepo.NewAccountRepo
	NewCreditTransactionRepo  = creditsrepo.NewTransactionRepo
	NewConversationThreadRepo = chatrepo.NewThreadRepo
	NewChatMessageRepo        = chatrepo.NewMessageRepo
)

// Package domain re-exports the entity sub-packages under one import, so
// repos and services can refer to types.User, types.ChatMessage, etc.
package domain

import (
	"github.com/mentora-app/mentora-backend/internal/domain/chat"
	"github.com/mentora-app/mentora-backend/internal/domain/credits"
	"github.com/mentora-app/mentora-backend/internal/domain/user"
)

type (
	User = user.User

	CreditAccount     = credits.CreditAccount
	CreditTransaction = credits.CreditTransaction
	TransactionType   = credits.TransactionType

	ConversationThread = chat.ConversationThread
	ChatMessage        = chat.ChatMessage
)

const (
	TxWelcomeBonus      = credits.TxWelcomeBonus
	TxPurchase          = credits.TxPurchase
	TxChatMessage       = credits.TxChatMessage
	TxImageAnalysis     = credits.TxImageAnalysis
	TxConferenceHosting = credits.TxConferenceHosting
	TxAdminGift         = credits.TxAdminGift
	TxAdminBulkGift     = credits.TxAdminBulkGift

	RoleUser           = chat.RoleUser
	RoleAssistant      = chat.RoleAssistant
	RoleSystemGuidance = chat.RoleSystemGuidance

	DefaultStartingBalance = credits.DefaultStartingBalance
	ChatMessageCost        = credits.ChatMessageCost
	ImageAnalysisCost      = credits.ImageAnalysisCost
	ConferenceHostingCost  = credits.ConferenceHostingCost
)

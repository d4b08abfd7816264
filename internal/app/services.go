package app

import (
	"gorm.io/gorm"

	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
	"github.com/mentora-app/mentora-backend/internal/services"
)

type Services struct {
	Ledger          services.LedgerService
	Personalization services.PersonalizationService
	Transcript      services.TranscriptService
	Session         services.SessionService
	Turn            services.TurnService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")

	ledger := services.NewLedgerService(db, log, r.CreditAccount, r.CreditTransaction)
	personalization := services.NewPersonalizationService(log, r.User)
	transcript := services.NewTranscriptService(log, db, r.ConversationThread, r.ChatMessage)
	session := services.NewSessionService(log, c.Assistant, services.SessionConfig{
		PollInterval:     cfg.RunPollInterval,
		MaxWait:          cfg.RunMaxWait,
		BaseInstructions: cfg.BaseInstructions,
	})
	turn := services.NewTurnService(log, ledger, personalization, session, transcript,
		r.User, c.ThreadLocker, services.TurnConfig{
			LockTTL:            cfg.TurnLockTTL,
			AddressProbability: cfg.AddressProbability,
		})

	return Services{
		Ledger:          ledger,
		Personalization: personalization,
		Transcript:      transcript,
		Session:         session,
		Turn:            turn,
	}
}

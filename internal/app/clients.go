package app

import (
	"fmt"

	"github.com/mentora-app/mentora-backend/internal/clients/assistant"
	redisclient "github.com/mentora-app/mentora-backend/internal/clients/redis"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

type Clients struct {
	Assistant assistant.Client

	// ThreadLocker is nil when redis is not configured; turns then run
	// without cross-process serialization.
	ThreadLocker redisclient.ThreadLocker
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	ai, err := assistant.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init assistant client: %w", err)
	}

	locker, err := redisclient.NewThreadLocker(log)
	if err != nil {
		log.Warn("thread locker unavailable, turns will not be serialized across processes", "error", err)
		locker = nil
	}

	return Clients{Assistant: ai, ThreadLocker: locker}, nil
}

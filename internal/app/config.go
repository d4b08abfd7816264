package app

import (
	"strconv"
	"time"

	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
	"github.com/mentora-app/mentora-backend/internal/utils"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string

	JWTSecretKey         string
	AdminToken           string
	PaymentWebhookSecret string
	AllowedOrigins       string

	RunPollInterval  time.Duration
	RunMaxWait       time.Duration
	BaseInstructions string

	TurnLockTTL        time.Duration
	AddressProbability float64
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		ServiceName: utils.GetEnv("SERVICE_NAME", "mentora-backend", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),

		JWTSecretKey:         utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AdminToken:           utils.GetEnv("ADMIN_TOKEN", "", log),
		PaymentWebhookSecret: utils.GetEnv("PAYMENT_WEBHOOK_SECRET", "", log),
		AllowedOrigins:       utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log),

		RunPollInterval:  utils.GetEnvAsDuration("RUN_POLL_INTERVAL", 750*time.Millisecond, log),
		RunMaxWait:       utils.GetEnvAsDuration("RUN_MAX_WAIT", 90*time.Second, log),
		BaseInstructions: utils.GetEnv("ASSISTANT_BASE_INSTRUCTIONS", "", log),

		TurnLockTTL:        utils.GetEnvAsDuration("TURN_LOCK_TTL", 2*time.Minute, log),
		AddressProbability: getEnvAsFloat("REPLY_ADDRESS_PROBABILITY", 0.3, log),
	}
}

func getEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	raw := utils.GetEnv(key, "", log)
	if raw == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as float, using default",
				"env_var", key, "providedVal", raw, "defaultVal", defaultVal, "error", err)
		}
		return defaultVal
	}
	return f
}

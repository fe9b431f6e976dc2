package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Port    string
	LogFile string

	DatabaseURL    string
	ClerkSecretKey string

	AIURL     string
	AIKey     string
	AIModel   string
	AITimeout time.Duration

	RedisURL       string
	RateLimitRPS   float64
	RateLimitBurst int

	MetricsUser string
	MetricsPass string

	FCMCredentialsJSON string
	FCMCredentialsFile string
	RemindersEnabled   bool
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:     str("APP_ENV", "dev"),
		Port:    str("PORT", "3333"),
		LogFile: str("LOG_FILE", ""),

		DatabaseURL:    str("DATABASE_URL", ""),
		ClerkSecretKey: str("CLERK_SECRET_KEY", ""),

		AIURL:     str("AI_URL", "https://api.groq.com/openai/v1/chat/completions"),
		AIKey:     str("AI_API_KEY", ""),
		AIModel:   str("AI_MODEL", "llama-3.1-8b-instant"),
		AITimeout: time.Duration(integer("AI_TIMEOUT_SECONDS", 20)) * time.Second,

		RedisURL:       str("REDIS_URL", ""),
		RateLimitRPS:   float("RATE_LIMIT_RPS", 5),
		RateLimitBurst: integer("RATE_LIMIT_BURST", 30),

		MetricsUser: str("METRICS_USER", ""),
		MetricsPass: str("METRICS_PASS", ""),

		FCMCredentialsJSON: str("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMCredentialsFile: str("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		RemindersEnabled:   boolean("REMINDERS_ENABLED", true),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	return cfg, nil
}

func str(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func integer(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func float(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func boolean(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

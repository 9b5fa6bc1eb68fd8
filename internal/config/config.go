package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	DatabaseURL string
	LogLevel    string
	NatsURL     string
	NatsToken   string
	RedisAddr   string
	APIToken    string
	CorpusDir   string

	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	LLMTimeout      time.Duration
	LLMRPS          float64

	StoreTimeout time.Duration
	SessionTTL   time.Duration
	ReapInterval time.Duration
	RateLimit    int
	RateWindow   time.Duration
}

func Load() Config {
	return Config{
		Port:        envInt("BEACON_PORT", 8760),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		RedisAddr:   envStr("REDIS_ADDR", ""),
		APIToken:    envStr("BEACON_API_TOKEN", ""),
		CorpusDir:   envStr("CORPUS_DIR", ""),

		LLMProvider:     envStr("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("BEACON_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:      envDuration("LLM_TIMEOUT", 30*time.Second),
		LLMRPS:          envFloat("LLM_RPS", 2),

		StoreTimeout: envDuration("STORE_TIMEOUT", 5*time.Second),
		SessionTTL:   envDuration("SESSION_TTL", 24*time.Hour),
		ReapInterval: envDuration("REAP_INTERVAL", 15*time.Minute),
		RateLimit:    envInt("RATE_LIMIT", 10),
		RateWindow:   envDuration("RATE_WINDOW", time.Minute),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go duration syntax ("90s", "15m"). Non-positive values
// fall back so a typo can never disable a timeout.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv           string
	AppName          string
	APIPrefix        string
	AppPort          string
	CORSAllowOrigins []string

	JWTSecret          string
	JWTAlgorithm       string
	JWTAudience        string
	JWTIssuer          string
	GuestTokenTTLHours int

	GeminiAPIKey          string
	GeminiModel           string
	AdvisorTimeoutSeconds int
	AdvisorMaxAttempts    int
	AdvisorUseMock        bool

	DatabaseURL string
	StateDir    string

	TrialCredits      int
	StarterCredits    int
	CreditPackCredits int
	ChargeFailedQuery bool

	CheckoutStarterURL   string
	CheckoutUnlimitedURL string
	CheckoutCreditsURL   string
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		AppEnv:    getEnv("APP_ENV", "local"),
		AppName:   getEnv("APP_NAME", "Mungers Mind API"),
		APIPrefix: getEnv("API_PREFIX", "/api/v1"),
		AppPort:   getEnv("APP_PORT", "8000"),
		CORSAllowOrigins: getEnvCSV(
			"CORS_ALLOW_ORIGINS",
			[]string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"},
		),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTAlgorithm:       getEnv("JWT_ALGORITHM", "HS256"),
		JWTAudience:        getEnv("JWT_AUDIENCE", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", ""),
		GuestTokenTTLHours: getEnvInt("GUEST_TOKEN_TTL_HOURS", 24*30),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AdvisorTimeoutSeconds: getEnvInt("ADVISOR_TIMEOUT_SECONDS", 30),
		AdvisorMaxAttempts:    getEnvInt("ADVISOR_MAX_ATTEMPTS", 3),
		AdvisorUseMock:        getEnvBool("ADVISOR_USE_MOCK", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		StateDir:    getEnv("STATE_DIR", ".mungers-mind"),

		TrialCredits:      getEnvInt("TRIAL_CREDITS", 1),
		StarterCredits:    getEnvInt("STARTER_CREDITS", 10),
		CreditPackCredits: getEnvInt("CREDIT_PACK_CREDITS", 20),
		ChargeFailedQuery: getEnvBool("CHARGE_FAILED_QUERIES", false),

		CheckoutStarterURL: getEnv(
			"CHECKOUT_STARTER_URL",
			"https://mungers-mind.lemonsqueezy.com/checkout/buy/b2b33d63-a09f-41f9-9db9-050a3e6f9652",
		),
		CheckoutUnlimitedURL: getEnv(
			"CHECKOUT_UNLIMITED_URL",
			"https://mungers-mind.lemonsqueezy.com/checkout/buy/950653fe8-dcf9-47c4-8cd2-f32a0f453d9d",
		),
		CheckoutCreditsURL: getEnv(
			"CHECKOUT_CREDITS_URL",
			"https://mungers-mind.lemonsqueezy.com/checkout/buy/a52438b3-daa2-486a-b426-464d18e9f962",
		),
	}
}

func (c Config) Validate() error {
	secret := strings.TrimSpace(c.JWTSecret)
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if secret == "change-me-in-production" {
		return errors.New("JWT_SECRET must not use insecure default value")
	}
	if len(secret) < 16 {
		return errors.New("JWT_SECRET is too short; use at least 16 characters")
	}
	if strings.TrimSpace(c.JWTAlgorithm) == "" {
		return errors.New("JWT_ALGORITHM is required")
	}
	if !c.AdvisorUseMock && strings.TrimSpace(c.GeminiAPIKey) == "" {
		return errors.New("GEMINI_API_KEY is required (set ADVISOR_USE_MOCK=true to run without one)")
	}
	if c.TrialCredits < 0 || c.StarterCredits < 0 || c.CreditPackCredits < 0 {
		return errors.New("credit allotments must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

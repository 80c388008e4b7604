package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string
	BaseURL     string
	LogLevel    string

	// Allocation
	ShortCodeLength       int
	MaxAllocationAttempts int
	BlockedDomains        []string

	// Auth
	JWTSecret          string
	JWTExpiresIn       time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	AllowedEmails      []string
	FrontendURL        string

	// Rate limiting, disabled when RedisURL is empty
	RedisURL         string
	RateLimitWindow  time.Duration
	ShortenRateLimit int
	AuthRateLimit    int
	APIRateLimit     int

	AnalyticsRetentionDays int
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:      getEnv("APP_ENV", "local"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		ShortCodeLength:       getEnvInt("SHORT_CODE_LENGTH", 6),
		MaxAllocationAttempts: getEnvInt("MAX_ALLOCATION_ATTEMPTS", 10),
		BlockedDomains:        getEnvList("BLOCKED_DOMAINS", []string{"localhost", "127.0.0.1", "0.0.0.0"}),

		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		JWTExpiresIn:       getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		AllowedEmails:      getEnvList("ALLOWED_EMAILS", nil),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:8080/dashboard"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		ShortenRateLimit: getEnvInt("SHORTEN_RATE_LIMIT", 20),
		AuthRateLimit:    getEnvInt("AUTH_RATE_LIMIT", 10),
		APIRateLimit:     getEnvInt("API_RATE_LIMIT", 100),

		AnalyticsRetentionDays: getEnvInt("ANALYTICS_RETENTION_DAYS", 90),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Database
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	// Auth
	JWTSecret    string
	TokenTTL     time.Duration
	SessionTTL   time.Duration
	CookieSecure bool

	// Redis - sessions and realtime fan-out
	RedisURL string

	CORSOrigins []string

	// Per-user write limits
	RateLimitPerMinute int
	RateLimitBurst     int

	// SMTP - mail disabled when SMTPHost is empty
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
}

// Load reads the configuration from the environment, falling back to
// development defaults.
func Load() Config {
	return Config{
		Port:               getenv("PORT", "8080"),
		DBHost:             getenv("DB_HOST", "localhost"),
		DBUser:             getenv("DB_USER", "postgres"),
		DBPassword:         getenv("DB_PASS", "postgres"),
		DBName:             getenv("DB_NAME", "realty_crm"),
		DBPort:             getenv("DB_PORT", "5432"),
		JWTSecret:          getenv("JWT_SECRET", "your-secret-key"),
		TokenTTL:           time.Duration(getenvInt("TOKEN_TTL_HOURS", 24*7)) * time.Hour,
		SessionTTL:         time.Duration(getenvInt("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		CookieSecure:       getenv("COOKIE_SECURE", "false") == "true",
		RedisURL:           getenv("REDIS_URL", "redis://localhost:6379/0"),
		CORSOrigins:        splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),
		RateLimitPerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:     getenvInt("RATE_LIMIT_BURST", 10),
		SMTPHost:           getenv("SMTP_HOST", ""),
		SMTPPort:           getenvInt("SMTP_PORT", 465),
		SMTPUser:           getenv("SMTP_USER", ""),
		SMTPPassword:       getenv("SMTP_PASS", ""),
		SMTPSender:         getenv("SMTP_SENDER", ""),
	}
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

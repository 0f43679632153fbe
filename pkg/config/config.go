package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all process-wide settings. Loaded once at startup and
// passed down; handlers never read the environment directly.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Gemini   GeminiConfig
	SMTP     SMTPConfig
	FCM      FCMConfig
	Reminder ReminderConfig
}

type ServerConfig struct {
	Addr               string
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type FCMConfig struct {
	CredentialsFile string
}

type ReminderConfig struct {
	// Cron spec for the daily due-date sweep, evaluated in Location.
	Spec     string
	Location string
}

// Load reads configuration from the environment, with an optional .env
// file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:               getEnv("SERVER_ADDR", ":8080"),
			RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
			AllowedOrigins:     []string{getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000")},
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "workmate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		FCM: FCMConfig{
			CredentialsFile: os.Getenv("FCM_CREDENTIALS_FILE"),
		},
		Reminder: ReminderConfig{
			Spec:     getEnv("REMINDER_CRON", "0 9 * * *"),
			Location: getEnv("REMINDER_LOCATION", "Asia/Tokyo"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

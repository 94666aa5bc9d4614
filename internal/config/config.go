// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          int
	DataDir       string // always absolute
	DBPath        string
	LogLevel      string
	LogPretty     bool
	Location      *time.Location
	CampaignsFile string // optional YAML override of the campaign table

	Storage  StorageConfig
	Telegram TelegramConfig
	Jobs     JobsConfig
}

// StorageConfig describes the S3-compatible bucket receiving daily ledgers.
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	KeyPrefix string
}

// Enabled reports whether enough settings are present to talk to the bucket.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// TelegramConfig holds the bot credentials for report and error delivery.
type TelegramConfig struct {
	BotToken      string
	ChatID        string
	ErrorBotToken string // defaults to BotToken
	ErrorChatID   string
	APIBaseURL    string
}

// Enabled reports whether ledger reports can be delivered.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ErrorsEnabled reports whether operational errors can be forwarded.
func (t TelegramConfig) ErrorsEnabled() bool {
	return t.ErrorBotToken != "" && t.ErrorChatID != ""
}

// JobsConfig holds the daily schedule of the rotation jobs.
type JobsConfig struct {
	Enabled         bool
	DispatchEnabled bool
	UploadAt        ClockTime
	DispatchAt      ClockTime
	RetentionAt     ClockTime
	RetentionDays   int
}

// ClockTime is a wall-clock time of day in the configured location.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the moment of c on the calendar day of t, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

// ParseClockTime parses an "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "/opt/leads_postback/data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tzName := getEnv("TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tzName, err)
	}

	uploadAt, err := ParseClockTime(getEnv("UPLOAD_AT", "00:00"))
	if err != nil {
		return nil, fmt.Errorf("UPLOAD_AT: %w", err)
	}
	dispatchAt, err := ParseClockTime(getEnv("DISPATCH_AT", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("DISPATCH_AT: %w", err)
	}
	retentionAt, err := ParseClockTime(getEnv("RETENTION_AT", "00:30"))
	if err != nil {
		return nil, fmt.Errorf("RETENTION_AT: %w", err)
	}

	botToken := getEnv("TELEGRAM_BOT_TOKEN", "")

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8080),
		DataDir:       dataDir,
		DBPath:        getEnv("DB_PATH", filepath.Join(dataDir, "postback.db")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		Location:      loc,
		CampaignsFile: getEnv("CAMPAIGNS_FILE", ""),
		Storage: StorageConfig{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Bucket:    getEnv("S3_BUCKET", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			KeyPrefix: getEnv("S3_KEY_PREFIX", ""),
		},
		Telegram: TelegramConfig{
			BotToken:      botToken,
			ChatID:        getEnv("TELEGRAM_CHAT_ID", ""),
			ErrorBotToken: getEnv("TELEGRAM_ERROR_BOT_TOKEN", botToken),
			ErrorChatID:   getEnv("TELEGRAM_ERROR_CHAT_ID", ""),
			APIBaseURL:    getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		},
		Jobs: JobsConfig{
			Enabled:         getEnvAsBool("SCHEDULER_ENABLED", true),
			DispatchEnabled: getEnvAsBool("DISPATCH_ENABLED", true),
			UploadAt:        uploadAt,
			DispatchAt:      dispatchAt,
			RetentionAt:     retentionAt,
			RetentionDays:   getEnvAsInt("RETENTION_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Jobs.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.Jobs.RetentionDays)
	}
	if c.Location == nil {
		return fmt.Errorf("timezone is not set")
	}
	return nil
}

// Now returns the current time in the configured location.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

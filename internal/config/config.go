package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds everything read from the environment
type Config struct {
	BotToken     string          `validate:"required"`
	DatabaseURL  string          `validate:"required"`
	AdminUserIDs map[int64]bool
	LogMode      string          `validate:"omitempty,oneof=development production dev prod"`

	Quiz     QuizConfig
	Snapshot SnapshotConfig
	Report   ReportConfig
	Email    EmailConfig
	HTTP     HTTPConfig
}

// QuizConfig controls quiz timing
type QuizConfig struct {
	QuestionTimeout time.Duration `validate:"gt=0"`
	FeedbackDelay   time.Duration `validate:"gte=0"`
}

// SnapshotConfig selects where in-flight quizzes are persisted between restarts
type SnapshotConfig struct {
	File          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
}

// ReportConfig controls the weekly report
type ReportConfig struct {
	Dir      string `validate:"required"`
	Timezone string `validate:"required"`
}

// EmailConfig holds SMTP credentials. Email is disabled unless Enabled() is true.
type EmailConfig struct {
	Host       string `validate:"required"`
	Port       int    `validate:"gt=0,lte=65535"`
	Username   string
	Password   string
	AdminEmail string `validate:"omitempty,email"`
}

// Enabled reports whether all credentials needed to send mail are present
func (e EmailConfig) Enabled() bool {
	return e.Username != "" && e.Password != "" && e.AdminEmail != ""
}

// HTTPConfig enables the webhook/health server
type HTTPConfig struct {
	Addr          string
	WebhookURL    string `validate:"omitempty,url"`
	WebhookSecret string `validate:"omitempty,alphanum,min=16"`
}

// WebhookEndpoint is the URL registered with Telegram, the secret is its last path segment
func (h HTTPConfig) WebhookEndpoint() string {
	if h.WebhookURL == "" {
		return ""
	}
	return strings.TrimRight(h.WebhookURL, "/") + "/" + h.WebhookSecret
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using the given lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	questionTimeout, err := parseDuration(getenv("QUESTION_TIMEOUT"), 240*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid QUESTION_TIMEOUT: %w", err)
	}
	feedbackDelay, err := parseDuration(getenv("FEEDBACK_DELAY"), 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FEEDBACK_DELAY: %w", err)
	}
	redisDB, err := parseInt(getenv("REDIS_DB"), 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	smtpPort, err := parseInt(getenv("SMTP_PORT"), 587)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg := &Config{
		BotToken:     strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN")),
		DatabaseURL:  strings.TrimSpace(getenv("DATABASE_URL")),
		AdminUserIDs: ParseAdminIDs(getenv("ADMIN_USER_IDS")),
		LogMode:      withDefault(getenv("LOG_MODE"), "development"),
		Quiz: QuizConfig{
			QuestionTimeout: questionTimeout,
			FeedbackDelay:   feedbackDelay,
		},
		Snapshot: SnapshotConfig{
			File:          withDefault(getenv("SNAPSHOT_FILE"), "data/quiz_sessions.json"),
			RedisAddr:     getenv("REDIS_ADDR"),
			RedisPassword: getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,
		},
		Report: ReportConfig{
			Dir:      withDefault(getenv("REPORTS_DIR"), "reports"),
			Timezone: withDefault(getenv("REPORT_TIMEZONE"), "UTC"),
		},
		Email: EmailConfig{
			Host:       withDefault(getenv("SMTP_HOST"), "smtp.gmail.com"),
			Port:       smtpPort,
			Username:   getenv("EMAIL_USERNAME"),
			Password:   getenv("EMAIL_PASSWORD"),
			AdminEmail: getenv("ADMIN_EMAIL"),
		},
		HTTP: HTTPConfig{
			Addr:          getenv("HTTP_ADDR"),
			WebhookURL:    strings.TrimSpace(getenv("WEBHOOK_URL")),
			WebhookSecret: strings.TrimSpace(getenv("WEBHOOK_SECRET")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}
	if cfg.HTTP.WebhookURL != "" {
		if cfg.HTTP.Addr == "" {
			cfg.HTTP.Addr = ":8080"
		}
		// a fresh secret per run is fine, the webhook is re-registered on start
		if cfg.HTTP.WebhookSecret == "" {
			cfg.HTTP.WebhookSecret = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
	}
	return cfg, nil
}

// ParseAdminIDs parses a comma separated list of Telegram ids, skipping invalid entries
func ParseAdminIDs(raw string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids[id] = true
	}
	return ids
}

// parseDuration accepts Go durations ("90s") or plain seconds ("90")
func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func parseInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

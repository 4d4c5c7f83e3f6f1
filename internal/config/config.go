package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type StorageDriver string

const (
	DriverPostgres StorageDriver = "postgres"
	DriverMemory   StorageDriver = "memory"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
	ProviderNone   LLMProvider = "none"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Storage
	StorageDriver StorageDriver `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseDSN   string        `env:"DATABASE_DSN" envDefault:"host=localhost user=user password=password dbname=kindreddb port=5432 sslmode=disable"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6380"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	// Identity
	JWTSecret        string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"72h"`
	CredentialDomain string        `env:"CREDENTIAL_DOMAIN" envDefault:"kindred.local"`
	AdminUserIDs     []string      `env:"ADMIN_USER_IDS" envSeparator:","`

	// Text generation
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"none"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	RewriteTimeout   time.Duration `env:"REWRITE_TIMEOUT" envDefault:"5s"`

	// Alerts
	TelegramBotToken         string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID      int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`
	TelegramSpecialistChatID int64  `env:"TELEGRAM_SPECIALIST_CHAT_ID"`

	// Jobs
	JournalScanSchedule string `env:"JOURNAL_SCAN_SCHEDULE" envDefault:"@every 1h"`
	BanSweepSchedule    string `env:"BAN_SWEEP_SCHEDULE" envDefault:"@every 15m"`
}

// New parses the configuration from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.StorageDriver)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderYandex, ProviderNone:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLMProvider)
	}
	if c.RewriteTimeout <= 0 {
		c.RewriteTimeout = DefaultRewriteTimeout
	}
	return nil
}

// IsAdmin reports whether userID is listed in ADMIN_USER_IDS.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

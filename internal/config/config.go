// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token        string `yaml:"token" envconfig:"RELAY_BOT_TOKEN"`
	Mode         string `yaml:"mode" envconfig:"RELAY_BOT_MODE"` // polling | noop
	OperatorID   int64  `yaml:"operator_id" envconfig:"RELAY_BOT_OPERATOR_ID"`
	OperatorName string `yaml:"operator_name" envconfig:"RELAY_BOT_OPERATOR_NAME"`
	PollTimeout  int    `yaml:"poll_timeout"`          // seconds
	RateLimit    int    `yaml:"rate_limit_per_minute"` // per user, 0 disables
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"RELAY_LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                            // json|console
	Sampling bool   `yaml:"sampling"`                          // enable sampling in prod
}

type AdminConfig struct {
	Port      int           `yaml:"port" envconfig:"RELAY_ADMIN_PORT"`
	APIKey    string        `yaml:"api_key" envconfig:"RELAY_ADMIN_API_KEY"`
	JWTSecret string        `yaml:"jwt_secret" envconfig:"RELAY_ADMIN_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"RELAY_DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" envconfig:"RELAY_REDIS_URL"`
	Password string        `yaml:"password" envconfig:"RELAY_REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StateConfig struct {
	Backend string        `yaml:"backend"` // memory | redis
	TTL     time.Duration `yaml:"ttl"`
}

type BroadcastConfig struct {
	Concurrency   int `yaml:"concurrency"`
	RatePerSecond int `yaml:"rate_per_second"`
}

type SchedulerConfig struct {
	ExpiryReportInterval time.Duration `yaml:"expiry_report_interval"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" envconfig:"RELAY_ENCRYPTION_KEY"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	State     StateConfig     `yaml:"state"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	ModePolling = "polling"
	ModeNoop    = "noop"

	StateMemory = "memory"
	StateRedis  = "redis"
)

// LoadConfig reads the YAML file at path, loads a .env file next to the
// working directory when present, and lets RELAY_* variables override.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
		// dev runs may be configured from the environment alone
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.Runtime.Dev = dev

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and validates required fields.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	// defaults
	cfg.Bot.Mode = strings.ToLower(strings.TrimSpace(cfg.Bot.Mode))
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = ModePolling
	}
	if cfg.Bot.OperatorName == "" {
		cfg.Bot.OperatorName = "Operator"
	}
	if cfg.Bot.PollTimeout <= 0 {
		cfg.Bot.PollTimeout = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, time.Hour)
	cfg.State.Backend = strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	if cfg.State.Backend == "" {
		cfg.State.Backend = StateMemory
	}
	cfg.State.TTL = normalizeTTL(cfg.State.TTL, 24*time.Hour)
	if cfg.Broadcast.Concurrency <= 0 {
		cfg.Broadcast.Concurrency = 8
	}
	if cfg.Broadcast.RatePerSecond <= 0 {
		cfg.Broadcast.RatePerSecond = 25 // Telegram allows ~30 msgs/sec per bot
	}
	cfg.Scheduler.ExpiryReportInterval = normalizeTTL(cfg.Scheduler.ExpiryReportInterval, time.Hour)

	// Minimal validation
	if cfg.Bot.OperatorID <= 0 {
		return errors.New("bot.operator_id is required")
	}
	switch cfg.Bot.Mode {
	case ModePolling:
		if cfg.Bot.Token == "" {
			return errors.New("bot.token is required in polling mode")
		}
	case ModeNoop:
		if !cfg.Runtime.Dev {
			return errors.New("bot.mode=noop is only allowed with -dev")
		}
	default:
		return fmt.Errorf("invalid bot.mode %q; allowed: polling, noop", cfg.Bot.Mode)
	}
	if cfg.Database.URL == "" && !cfg.Runtime.Dev {
		return errors.New("database.url is required")
	}
	switch cfg.State.Backend {
	case StateMemory:
	case StateRedis:
		if cfg.Redis.URL == "" {
			return errors.New("redis.url is required when state.backend is redis")
		}
	default:
		return fmt.Errorf("invalid state.backend %q; allowed: memory, redis", cfg.State.Backend)
	}
	if k := len(cfg.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", k)
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

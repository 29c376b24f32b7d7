package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"pollstack"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// PostgresDSN is the fallback for any store without its own DSN.
	PostgresDSN string `env:"POSTGRES_DSN"`
	UsersDSN    string `env:"USERS_DSN"`
	PaymentsDSN string `env:"PAYMENTS_DSN"`
	ResearchDSN string `env:"RESEARCH_DSN"`
	VoteDSN     string `env:"VOTE_DSN"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	Retry RetryConfig `envPrefix:"UNIT_"`

	SweepSchedule    string        `env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	AuditSchedule    string        `env:"AUDIT_SCHEDULE" envDefault:"@every 1h"`
	SweepParallelism int           `env:"SWEEP_PARALLELISM" envDefault:"4"`
	EnableTimers     bool          `env:"ENABLE_DEADLINE_TIMERS" envDefault:"true"`
	TimerTimeout     time.Duration `env:"DEADLINE_TIMER_TIMEOUT" envDefault:"30s"`

	SignupCredit int64 `env:"SIGNUP_CREDIT" envDefault:"0"`

	NotifyWebhookURL string        `env:"NOTIFY_WEBHOOK_URL"`
	NotifyRatePerSec float64       `env:"NOTIFY_RATE_PER_SEC" envDefault:"20"`
	NotifyBurst      int           `env:"NOTIFY_BURST" envDefault:"5"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
}

type RetryConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	Budget      time.Duration `env:"RETRY_BUDGET" envDefault:"10s"`
	BaseBackoff time.Duration `env:"BASE_BACKOFF" envDefault:"20ms"`
	MaxBackoff  time.Duration `env:"MAX_BACKOFF" envDefault:"500ms"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.UsersDSN = fallback(cfg.UsersDSN, cfg.PostgresDSN)
	cfg.PaymentsDSN = fallback(cfg.PaymentsDSN, cfg.PostgresDSN)
	cfg.ResearchDSN = fallback(cfg.ResearchDSN, cfg.PostgresDSN)
	cfg.VoteDSN = fallback(cfg.VoteDSN, cfg.PostgresDSN)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// InMemory reports whether no store DSN is configured at all.
func (c Config) InMemory() bool {
	return c.UsersDSN == "" && c.PaymentsDSN == "" && c.ResearchDSN == "" && c.VoteDSN == ""
}

func (c Config) validate() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("UNIT_MAX_ATTEMPTS must be at least 1")
	}
	if c.SweepParallelism < 1 {
		return errors.New("SWEEP_PARALLELISM must be at least 1")
	}
	if c.InMemory() {
		return nil
	}
	var missing []string
	for name, dsn := range map[string]string{
		"USERS_DSN":    c.UsersDSN,
		"PAYMENTS_DSN": c.PaymentsDSN,
		"RESEARCH_DSN": c.ResearchDSN,
		"VOTE_DSN":     c.VoteDSN,
	} {
		if dsn == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("store dsn missing: %s", strings.Join(missing, ","))
	}
	return nil
}

func fallback(value string, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

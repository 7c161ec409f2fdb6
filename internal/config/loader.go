package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config captures environment driven configuration values for the slot booking service.
type Config struct {
	HTTPPort    int      `env:"SLOTBOOKING_HTTP_PORT" envDefault:"8080"`
	CORSOrigins []string `env:"SLOTBOOKING_CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	DBDriver string `env:"SLOTBOOKING_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"SLOTBOOKING_DB_DSN" envDefault:"file:slotbooking.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"`

	HoldTTL             time.Duration `env:"SLOTBOOKING_HOLD_TTL" envDefault:"30s"`
	SweepInterval       time.Duration `env:"SLOTBOOKING_SWEEP_INTERVAL" envDefault:"1s"`
	Timezone            string        `env:"SLOTBOOKING_TIMEZONE" envDefault:"Asia/Kolkata"`
	ChanceBaseline      int           `env:"SLOTBOOKING_CHANCE_BASELINE" envDefault:"3"`
	ChanceResetSchedule string        `env:"SLOTBOOKING_CHANCE_RESET_SCHEDULE" envDefault:"0 8 * * *"`
	GamesFile           string        `env:"SLOTBOOKING_GAMES_FILE"`

	JWTSecret string `env:"SLOTBOOKING_JWT_SECRET"`
	JWTIssuer string `env:"SLOTBOOKING_JWT_ISSUER"`

	RedisURL string `env:"SLOTBOOKING_REDIS_URL"`

	GraphTenantID     string `env:"SLOTBOOKING_GRAPH_TENANT_ID"`
	GraphClientID     string `env:"SLOTBOOKING_GRAPH_CLIENT_ID"`
	GraphClientSecret string `env:"SLOTBOOKING_GRAPH_CLIENT_SECRET"`
	GraphSenderID     string `env:"SLOTBOOKING_GRAPH_SENDER_ID"`

	NotifyTimeout time.Duration `env:"SLOTBOOKING_NOTIFY_TIMEOUT" envDefault:"5s"`
	NotifyWorkers int           `env:"SLOTBOOKING_NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueue   int           `env:"SLOTBOOKING_NOTIFY_QUEUE" envDefault:"64"`

	OTelEndpoint string `env:"SLOTBOOKING_OTEL_ENDPOINT"`
	LogLevel     string `env:"SLOTBOOKING_LOG_LEVEL" envDefault:"info"`
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// GraphConfigured reports whether every Graph credential is present.
func (c Config) GraphConfigured() bool {
	return c.GraphTenantID != "" && c.GraphClientID != "" && c.GraphClientSecret != "" && c.GraphSenderID != ""
}

// Load parses configuration values from the process environment, after
// loading the given dotenv files when they exist. Variables already set in
// the environment win over dotenv values.
//
// Every missing and invalid variable is reported in one error.
func Load(dotenvFiles ...string) (Config, error) {
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		missing = append(missing, "SLOTBOOKING_JWT_SECRET")
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "SLOTBOOKING_HTTP_PORT")
	}
	switch strings.ToLower(cfg.DBDriver) {
	case "sqlite", "postgres":
	default:
		invalid = append(invalid, "SLOTBOOKING_DB_DRIVER")
	}
	if cfg.HoldTTL <= 0 {
		invalid = append(invalid, "SLOTBOOKING_HOLD_TTL")
	}
	if cfg.SweepInterval <= 0 {
		invalid = append(invalid, "SLOTBOOKING_SWEEP_INTERVAL")
	}
	if _, err := cfg.Location(); err != nil {
		invalid = append(invalid, "SLOTBOOKING_TIMEZONE")
	}
	if cfg.ChanceBaseline < 1 {
		invalid = append(invalid, "SLOTBOOKING_CHANCE_BASELINE")
	}
	if _, err := cron.ParseStandard(cfg.ChanceResetSchedule); err != nil {
		invalid = append(invalid, "SLOTBOOKING_CHANCE_RESET_SCHEDULE")
	}
	if cfg.NotifyTimeout <= 0 {
		invalid = append(invalid, "SLOTBOOKING_NOTIFY_TIMEOUT")
	}
	if cfg.NotifyWorkers < 1 {
		invalid = append(invalid, "SLOTBOOKING_NOTIFY_WORKERS")
	}
	if cfg.NotifyQueue < 1 {
		invalid = append(invalid, "SLOTBOOKING_NOTIFY_QUEUE")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	return cfg, nil
}

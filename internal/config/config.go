package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port               string `env:"PORT" envDefault:"8091"`
	DatabaseURL        string `env:"DATABASE_URL"`
	AutoCreateDB       bool   `env:"AUTO_CREATE_DB" envDefault:"false"`
	MaintenanceDB      string `env:"MAINTENANCE_DB" envDefault:"postgres"`
	RunMigrations      bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	GoLog    string `env:"GO_LOG"`

	// OpenAIAPIKey is used only when system settings carry no key.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	AdminJWTSecret      string `env:"ADMIN_JWT_SECRET"`
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS"`

	RedisURL  string `env:"REDIS_URL"`
	RateLimit string `env:"RATE_LIMIT" envDefault:"60-M"`

	SGPTimeout      time.Duration `env:"SGP_TIMEOUT" envDefault:"15s"`
	GenieACSNBIPort int           `env:"GENIEACS_NBI_PORT" envDefault:"7557"`

	ModelMaxAttempts    int           `env:"MODEL_MAX_ATTEMPTS" envDefault:"5"`
	ModelRetryBaseDelay time.Duration `env:"MODEL_RETRY_BASE_DELAY" envDefault:"2s"`
	ModelRetryMaxDelay  time.Duration `env:"MODEL_RETRY_MAX_DELAY" envDefault:"32s"`
	MaxToolTurns        int           `env:"MAX_TOOL_TURNS" envDefault:"5"`
	SettingsCacheTTL    time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"2m"`
	HistoryLimit        int           `env:"HISTORY_LIMIT" envDefault:"20"`
}

// EffectiveLogLevel honours the GO_LOG debug switch over LOG_LEVEL.
func (c Config) EffectiveLogLevel() string {
	v := strings.ToLower(strings.TrimSpace(c.GoLog))
	if v == "debug" || v == "1" || v == "true" {
		return "debug"
	}
	return c.LogLevel
}

func Load() (Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.AdminJWTSecret = strings.TrimSpace(cfg.AdminJWTSecret)

	if cfg.Port == "" {
		return Config{}, errors.New("missing PORT")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("missing DATABASE_URL")
	}
	if cfg.AdminJWTSecret == "" {
		return Config{}, errors.New("missing ADMIN_JWT_SECRET")
	}
	if cfg.MaxToolTurns <= 0 {
		return Config{}, errors.New("MAX_TOOL_TURNS must be positive")
	}
	if cfg.ModelMaxAttempts <= 0 {
		return Config{}, errors.New("MODEL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

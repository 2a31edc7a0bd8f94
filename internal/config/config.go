package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingEnvironmentVariables = errors.New("missing required environment variables")
	ErrInvalidConfig               = errors.New("invalid configuration")
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string   `mapstructure:"env"`          // current application environment (local, dev, production etc)
	TelegramAPIToken string   `mapstructure:"-"`            // Telegram API token loaded from environment
	CatalogPath      string   `mapstructure:"catalog_path"` // path to the curriculum catalog JSON
	DB               DB       `mapstructure:"database"`     // database configuration section
	Practice         Practice `mapstructure:"practice"`     // session pool and planner tuning
	Recorder         Recorder `mapstructure:"recorder"`     // completion retry policy
	Streak           Streak   `mapstructure:"streak"`       // streak day boundaries
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                 // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// Practice tunes live practice sessions.
type Practice struct {
	BufferSize     int           `mapstructure:"buffer_size"`      // items kept ready per session
	RefillEvery    int           `mapstructure:"refill_every"`     // served items between background refills
	StepTimeout    time.Duration `mapstructure:"step_timeout"`     // deadline of a single planner search step
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"` // idle time after which a session is closed
	ReaperSchedule string        `mapstructure:"reaper_schedule"`  // cron schedule of the idle session reaper
}

// Recorder configures retries of completion writes.
type Recorder struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
}

// Streak configures the calendar used for streak days.
type Streak struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the streak timezone.
func (s Streak) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: streak.timezone: %w", ErrInvalidConfig, err)
	}
	return loc, nil
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Load reads configuration from a local .env file, config files and environment variables.
func Load() (*Config, error) {
	// A missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	setDefaults(v)

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	if cfg.TelegramAPIToken == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.DB.URL = v.GetString("database_url")
	if cfg.DB.URL == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("catalog_path", "./assets/catalog.json")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("practice.buffer_size", 5)
	v.SetDefault("practice.refill_every", 3)
	v.SetDefault("practice.step_timeout", "2s")
	v.SetDefault("practice.session_idle_ttl", "30m")
	v.SetDefault("practice.reaper_schedule", "*/5 * * * *")
	v.SetDefault("recorder.max_attempts", 4)
	v.SetDefault("recorder.initial_wait", "100ms")
	v.SetDefault("recorder.max_wait", "2s")
	v.SetDefault("streak.timezone", "UTC")
}

// Validate checks values that would otherwise break the engine at runtime.
func (c *Config) Validate() error {
	p := c.Practice
	if p.BufferSize < 2 {
		return fmt.Errorf("%w: practice.buffer_size must be at least 2, got %d", ErrInvalidConfig, p.BufferSize)
	}
	if p.RefillEvery < 1 || p.RefillEvery >= p.BufferSize {
		return fmt.Errorf("%w: practice.refill_every must be in [1, %d), got %d",
			ErrInvalidConfig, p.BufferSize, p.RefillEvery)
	}
	if p.StepTimeout <= 0 {
		return fmt.Errorf("%w: practice.step_timeout must be positive", ErrInvalidConfig)
	}
	if c.Recorder.MaxAttempts < 1 {
		return fmt.Errorf("%w: recorder.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Streak.Location(); err != nil {
		return err
	}
	return nil
}

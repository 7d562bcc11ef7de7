package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"swell-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Forecast   ForecastConfig   `mapstructure:"forecast"`
	Tides      TidesConfig      `mapstructure:"tides"`
	Daylight   DaylightConfig   `mapstructure:"daylight"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Events     EventsConfig     `mapstructure:"events"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN runs the
// service with in-memory dedup state.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the civil-time firing cadence.
type SchedulerConfig struct {
	TargetMinute int           `mapstructure:"target_minute"`
	Timezone     string        `mapstructure:"timezone"`
	ScanHorizon  time.Duration `mapstructure:"scan_horizon"`
	MinDelay     time.Duration `mapstructure:"min_delay"`
}

// ForecastConfig covers the Open-Meteo endpoints.
type ForecastConfig struct {
	MarineBaseURL  string        `mapstructure:"marine_base_url"`
	WeatherBaseURL string        `mapstructure:"weather_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Days           int           `mapstructure:"days"`
}

// TidesConfig covers the tide-table endpoint and its cache.
type TidesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	CacheMaxDays   int           `mapstructure:"cache_max_days"`
}

// DaylightConfig defines the local-hours daylight window.
type DaylightConfig struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

// EvaluationConfig tunes the evaluation engine.
type EvaluationConfig struct {
	MinConsecutiveHours int           `mapstructure:"min_consecutive_hours"`
	TideWindow          time.Duration `mapstructure:"tide_window"`
	ContextHours        int           `mapstructure:"context_hours"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram sink.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// RulesConfig locates the rules file.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// EventsConfig routes match/sent events to Kafka.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWELLALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "swell-alerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.target_minute", 10)
	v.SetDefault("scheduler.timezone", "Europe/Madrid")
	v.SetDefault("scheduler.scan_horizon", "6h")
	v.SetDefault("scheduler.min_delay", "1s")

	v.SetDefault("forecast.marine_base_url", "https://marine-api.open-meteo.com/v1/marine")
	v.SetDefault("forecast.weather_base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("forecast.request_timeout", "10s")
	v.SetDefault("forecast.user_agent", "swell-alerts/1.0")
	v.SetDefault("forecast.days", 3)

	v.SetDefault("tides.request_timeout", "10s")
	v.SetDefault("tides.user_agent", "swell-alerts/1.0")
	v.SetDefault("tides.cache_max_days", 64)

	v.SetDefault("daylight.start_hour", 7)
	v.SetDefault("daylight.end_hour", 21)

	v.SetDefault("evaluation.min_consecutive_hours", 2)
	v.SetDefault("evaluation.tide_window", "3h")
	v.SetDefault("evaluation.context_hours", 2)

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("rules.path", "rules.json")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9101")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "swell-alerts.events")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.TargetMinute < 0 || c.Scheduler.TargetMinute > 59 {
		return fmt.Errorf("scheduler.target_minute must be within 0..59")
	}
	if c.Scheduler.Timezone == "" {
		return fmt.Errorf("scheduler.timezone is required")
	}
	if c.Evaluation.MinConsecutiveHours < 1 {
		return fmt.Errorf("evaluation.min_consecutive_hours must be at least 1")
	}
	if c.Evaluation.TideWindow <= 0 {
		return fmt.Errorf("evaluation.tide_window must be positive")
	}
	if c.Daylight.StartHour < 0 || c.Daylight.EndHour > 24 || c.Daylight.StartHour >= c.Daylight.EndHour {
		return fmt.Errorf("daylight window %d..%d invalid", c.Daylight.StartHour, c.Daylight.EndHour)
	}
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	if c.Alerting.Telegram.Enabled && c.Alerting.Telegram.BotToken == "" {
		return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers is required when events are enabled")
	}
	return nil
}

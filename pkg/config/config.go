package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the PlayGuard compliance backend.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	HTTP     HTTPConfig     `mapstructure:"http" validate:"required"`
	Logger   LoggerConfig   `mapstructure:"logger" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Sentry   SentryConfig   `mapstructure:"sentry"`

	Blockchain BlockchainConfig `mapstructure:"blockchain"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Gaming     GamingConfig     `mapstructure:"gaming" validate:"required"`
	Risk       RiskConfig       `mapstructure:"risk" validate:"required"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}

// RedisConfig configures the Redis connection used for locks, rate limits
// and idempotency records.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// BlockchainConfig points at the Concordium bridge service.
type BlockchainConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig enables the optional Telegram operator-alert channel.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token" validate:"required_if=Enabled true"`
	ChatID  int64  `mapstructure:"chat_id" validate:"required_if=Enabled true"`
}

// GamingConfig holds the session lifecycle thresholds. All durations are
// expressed in minutes.
type GamingConfig struct {
	MaxSessionMinutes          float64 `mapstructure:"max_session_minutes" validate:"required,gt=0"`
	RealityCheckIntervalMinute float64 `mapstructure:"reality_check_interval_minutes" validate:"required,gt=0"`
	MandatoryBreakMinutes      float64 `mapstructure:"mandatory_break_minutes" validate:"required,gt=0"`
}

// RateLimitRule is a single limit expressed as requests per window.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitRoutes carries per-route overrides for sensitive endpoints.
type RateLimitRoutes struct {
	SessionStart RateLimitRule `mapstructure:"session_start"`
	Transaction  RateLimitRule `mapstructure:"transaction"`
	RiskAssess   RateLimitRule `mapstructure:"risk_assess"`
}

// RateLimitConfig configures API rate limiting.
type RateLimitConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Global    RateLimitRule   `mapstructure:"global"`
	PerUser   RateLimitRule   `mapstructure:"per_user"`
	Routes    RateLimitRoutes `mapstructure:"routes"`
	Whitelist []string        `mapstructure:"whitelist"`
}

// RiskConfig holds tunable thresholds for the risk scoring engine.
type RiskConfig struct {
	AnalysisWindowDays       int     `mapstructure:"analysis_window_days" validate:"required,gt=0"`
	ExcessiveWeeklyMinutes   float64 `mapstructure:"excessive_weekly_minutes" validate:"required,gt=0"`
	LateNightShareThreshold  float64 `mapstructure:"late_night_share_threshold" validate:"required,gt=0,lte=1"`
	LateNightStartHour       int     `mapstructure:"late_night_start_hour" validate:"min=0,max=23"`
	LateNightEndHour         int     `mapstructure:"late_night_end_hour" validate:"min=0,max=23"`
	HighFrequencySessions    int     `mapstructure:"high_frequency_sessions" validate:"required,gt=0"`
	ModerateFrequencySession int     `mapstructure:"moderate_frequency_sessions" validate:"required,gt=0"`
}

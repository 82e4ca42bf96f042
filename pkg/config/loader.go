// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables,
// validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine in containerized deployments
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// Watch re-reads the config file on change and hands the updated Config to
// onChange. Invalid updates are logged and dropped, keeping the previous
// values in effect.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || onChange == nil {
		return
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			if log != nil {
				log.Warn("config reload failed", slog.String("file", e.Name), slog.Any("error", err))
			}
			return
		}

		if err := validate.Struct(cfg); err != nil {
			if log != nil {
				log.Warn("config reload rejected", slog.String("file", e.Name), slog.Any("error", err))
			}
			return
		}

		if log != nil {
			log.Info("config reloaded", slog.String("file", e.Name))
		}
		onChange(&cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("blockchain.timeout", "5s")

	v.SetDefault("gaming.max_session_minutes", 120)
	v.SetDefault("gaming.reality_check_interval_minutes", 30)
	v.SetDefault("gaming.mandatory_break_minutes", 15)

	v.SetDefault("risk.analysis_window_days", 30)
	v.SetDefault("risk.excessive_weekly_minutes", 1200)
	v.SetDefault("risk.late_night_share_threshold", 0.3)
	v.SetDefault("risk.late_night_start_hour", 0)
	v.SetDefault("risk.late_night_end_hour", 5)
	v.SetDefault("risk.high_frequency_sessions", 20)
	v.SetDefault("risk.moderate_frequency_sessions", 10)
}

package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

// Checkable is one dependency that can report whether it is usable.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker fans a readiness probe out to every registered dependency. A
// failing dependency degrades the probe but never panics it.
type Checker struct {
	log    *slog.Logger
	checks map[string]Checkable
}

func NewChecker(log *slog.Logger) *Checker {
	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a dependency under name. Empty names and nil checks
// are ignored.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks[name] = check
}

// Check runs every registered probe and maps each name to "OK" or the
// failure message.
func (c *Checker) Check(ctx context.Context) map[string]string {
	results := make(map[string]string, len(c.checks))

	for name, check := range c.checks {
		err := check.HealthCheck(ctx)
		if err != nil {
			results[name] = err.Error()
			if c.log != nil {
				c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
			}
			continue
		}

		results[name] = "OK"
	}

	return results
}

// DBChecker pings Postgres.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger is the one redis.Client method the probe needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker pings Redis. Session locks and rate limits depend on it.
type RedisChecker struct {
	pinger Pinger
}

func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// BridgeHealth reports whether the blockchain bridge circuit admits calls.
type BridgeHealth interface {
	Healthy() bool
}

// BridgeChecker reports the blockchain bridge circuit state.
type BridgeChecker struct {
	bridge BridgeHealth
}

func NewBridgeChecker(bridge BridgeHealth) *BridgeChecker {
	return &BridgeChecker{bridge: bridge}
}

// HealthCheck reports degraded when the bridge circuit is open. The
// service keeps running on mock responses in that state.
func (c *BridgeChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bridge == nil {
		return errors.New("blockchain bridge is not configured")
	}
	if !c.bridge.Healthy() {
		return errors.New("blockchain bridge circuit is open, responses are mocked")
	}
	return nil
}

// TelegramChecker verifies that the Telegram operator-alert bot is reachable.
type TelegramChecker struct {
	bot *telebot.Bot
}

func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized or disconnected")
	}
	return nil
}

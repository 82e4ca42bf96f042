package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"github.com/playguard/playguard/internal/api"
	"github.com/playguard/playguard/internal/audit"
	"github.com/playguard/playguard/internal/blockchain"
	"github.com/playguard/playguard/internal/database"
	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/exclusion"
	"github.com/playguard/playguard/internal/health"
	"github.com/playguard/playguard/internal/idempotency"
	"github.com/playguard/playguard/internal/jobs"
	jobhandlers "github.com/playguard/playguard/internal/jobs/handlers"
	"github.com/playguard/playguard/internal/ledger"
	"github.com/playguard/playguard/internal/lifecycle"
	"github.com/playguard/playguard/internal/limits"
	"github.com/playguard/playguard/internal/middleware"
	"github.com/playguard/playguard/internal/notify"
	"github.com/playguard/playguard/internal/ratelimit"
	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/internal/risk"
	"github.com/playguard/playguard/internal/session"
	"github.com/playguard/playguard/internal/user"
	"github.com/playguard/playguard/internal/usercache"
	"github.com/playguard/playguard/pkg/config"
	"github.com/playguard/playguard/pkg/graceful"
	"github.com/playguard/playguard/pkg/logger"
	"github.com/playguard/playguard/pkg/metrics"
	appredis "github.com/playguard/playguard/pkg/redis"
)

const notificationCatalogPath = "configs/notifications.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "playguard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	log.Info("starting playguard compliance backend",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.HTTP.Port),
	)

	config.Watch(v, log, func(updated *config.Config) {
		log.Info("configuration reloaded", slog.String("env", updated.AppEnv))
	})

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := appredis.New(ctx, appredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	// repositories
	userRepo := repository.NewUserRepository(db, log)
	sessionRepo := repository.NewSessionRepository(db, log)
	transactionRepo := repository.NewTransactionRepository(db, log)
	limitRepo := repository.NewLimitRepository(db, log)
	exclusionRepo := repository.NewSelfExclusionRepository(db, log)
	riskRepo := repository.NewRiskAssessmentRepository(db, log)
	auditRepo := repository.NewAuditLogRepository(db, log)
	notificationRepo := repository.NewNotificationRepository(db, log)

	auditService := audit.NewService(auditRepo, log)

	catalog := notify.DefaultCatalog()
	if _, statErr := os.Stat(notificationCatalogPath); statErr == nil {
		loaded, loadErr := notify.LoadCatalog(notificationCatalogPath)
		if loadErr != nil {
			log.Warn("failed to load notification catalog, using defaults", slog.Any("error", loadErr))
		} else {
			catalog = loaded
		}
	}

	var channels []notify.Channel
	var telegramChannel *notify.TelegramChannel
	if cfg.Telegram.Enabled {
		channel, tgErr := notify.NewTelegramChannel(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if tgErr != nil {
			log.Warn("telegram channel unavailable", slog.Any("error", tgErr))
		} else {
			telegramChannel = channel
			channels = append(channels, telegramChannel)
		}
	}
	dispatcher := notify.NewDispatcher(notificationRepo, catalog, log, channels...)

	guard := exclusion.NewGuard(exclusionRepo, userRepo, auditService, log)
	bridge := blockchain.NewClient(cfg.Blockchain, log)

	userService := user.NewService(userRepo, usercache.NewCache(appredis.NewMetricsClient(redisClient)), bridge, log)

	sessionService := session.NewService(
		sessionRepo,
		guard,
		dispatcher,
		auditService,
		session.Config{
			MaxSessionMinutes:           cfg.Gaming.MaxSessionMinutes,
			RealityCheckIntervalMinutes: cfg.Gaming.RealityCheckIntervalMinute,
			MandatoryBreakMinutes:       cfg.Gaming.MandatoryBreakMinutes,
		},
		redisClient.Client,
		log,
	)

	limitEngine := limits.NewEngine(limitRepo, transactionRepo, guard, auditService, bridge, log)
	riskEngine := risk.NewEngine(riskRepo, sessionRepo, transactionRepo, dispatcher, cfg.Risk, log)
	ledgerQuery := ledger.NewQuery(transactionRepo, sessionRepo)

	healthChecker := health.NewChecker(log)
	healthChecker.AddCheck("database", health.NewDBChecker(db))
	healthChecker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	healthChecker.AddCheck("blockchain_bridge", health.NewBridgeChecker(bridge))
	if telegramChannel != nil {
		healthChecker.AddCheck("telegram", health.NewTelegramChecker(telegramChannel.Bot()))
	}

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewAdaptiveLimiter(
			ratelimit.NewRedisLimiter(redisClient.Client, log),
			ratelimit.NewMemoryLimiter(log),
			log,
		)
		rules := ratelimit.NewRules(cfg.RateLimit)
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(limiter, rules, log)

		rateLimitCleaner := ratelimit.NewCleaner(redisClient.Client, log, time.Hour)
		go rateLimitCleaner.Run(ctx)
	}

	idemStore := idempotency.NewRedisStore(redisClient.Client, log)
	idemManager := idempotency.NewManager(idemStore, log)
	idemCleaner := idempotency.NewCleaner(redisClient.Client, log, time.Hour)
	go idemCleaner.Run(ctx)

	go metrics.NewSessionCollector(sessionRepo).Run(ctx)

	// background jobs
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	queueManager := jobs.NewManager(redisOpt, log)
	worker := jobs.NewWorker(redisOpt, map[string]int{
		jobs.QueueCritical: 6,
		jobs.QueueDefault:  3,
		jobs.QueueLow:      1,
	}, log)
	worker.RegisterHandler(jobs.TaskTypeDurationSweep, jobhandlers.NewDurationSweepHandler(sessionRepo, sessionService, log))
	worker.RegisterHandler(jobs.TaskTypeRiskSweep, jobhandlers.NewRiskSweepHandler(sessionRepo, queueManager, log))
	worker.RegisterHandler(jobs.TaskTypeRiskAssess, jobhandlers.NewRiskAssessHandler(riskEngine, log))
	worker.RegisterHandler(jobs.TaskTypeCleanupData, jobhandlers.NewCleanupHandler(notificationRepo, log))

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register scheduled tasks: %w", err)
	}
	scheduler.Run()

	apiServer := api.NewServer(
		sessionService,
		limitEngine,
		riskEngine,
		guard,
		userService,
		ledgerQuery,
		auditService,
		healthChecker,
		errHandler,
		rateLimitMiddleware,
		idemManager,
		log,
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("jobs_worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("jobs_scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("jobs_queue", func(context.Context) error {
		return queueManager.Close()
	})

	serveErr := graceful.NewServer(log, httpServer, cfg.HTTP.ShutdownTimeout).ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown hooks failed", slog.Any("error", err))
	}

	log.Info("playguard compliance backend stopped")

	return serveErr
}

// Package api exposes the compliance engines over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playguard/playguard/internal/audit"
	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/exclusion"
	"github.com/playguard/playguard/internal/health"
	"github.com/playguard/playguard/internal/idempotency"
	"github.com/playguard/playguard/internal/ledger"
	"github.com/playguard/playguard/internal/limits"
	"github.com/playguard/playguard/internal/middleware"
	"github.com/playguard/playguard/internal/risk"
	"github.com/playguard/playguard/internal/session"
	"github.com/playguard/playguard/internal/user"
)

// Server wires the compliance services into HTTP handlers.
type Server struct {
	sessions    *session.Service
	limits      *limits.Engine
	risk        *risk.Engine
	guard       *exclusion.Guard
	users       *user.Service
	ledger      *ledger.Query
	audit       *audit.Service
	health      *health.Checker
	errHandler  *apperrors.Handler
	rateLimit   *middleware.RateLimitMiddleware
	idempotency idempotency.Manager
	log         *slog.Logger
}

// NewServer constructs the API server. rateLimit and idem may be nil; the
// corresponding middleware is then skipped.
func NewServer(
	sessions *session.Service,
	limitEngine *limits.Engine,
	riskEngine *risk.Engine,
	guard *exclusion.Guard,
	users *user.Service,
	ledgerQuery *ledger.Query,
	auditService *audit.Service,
	healthChecker *health.Checker,
	errHandler *apperrors.Handler,
	rateLimit *middleware.RateLimitMiddleware,
	idem idempotency.Manager,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		sessions:    sessions,
		limits:      limitEngine,
		risk:        riskEngine,
		guard:       guard,
		users:       users,
		ledger:      ledgerQuery,
		audit:       auditService,
		health:      healthChecker,
		errHandler:  errHandler,
		rateLimit:   rateLimit,
		idempotency: idem,
		log:         log,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(s.log))
	router.Use(middleware.Metrics())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	users := v1.Group("/users")
	users.POST("", s.handleRegisterUser)
	users.GET("/:user_id", s.handleGetUser)
	users.PUT("/:user_id/wallet", s.handleUpdateWallet)
	users.DELETE("/:user_id", s.handleDeactivateUser)

	users.POST("/:user_id/sessions", s.routeLimited("session_start"), s.handleStartSession)
	users.GET("/:user_id/sessions", s.handleRecentSessions)
	users.POST("/:user_id/break", s.handleEnforceBreak)

	sessions := v1.Group("/sessions")
	sessions.GET("/:session_id", s.handleSessionSummary)
	sessions.POST("/:session_id/end", s.handleEndSession)
	sessions.PUT("/:session_id/stats", s.handleUpdateStats)
	sessions.POST("/:session_id/duration-check", s.handleCheckDuration)

	users.PUT("/:user_id/limits", s.handleSetLimit)
	users.GET("/:user_id/limits/:kind", s.handleGetLimit)
	users.DELETE("/:user_id/limits/:kind", s.handleRemoveLimit)
	users.POST("/:user_id/limits/check", s.handleCheckLimit)

	users.POST("/:user_id/transactions", s.transactionMiddleware()...)
	users.GET("/:user_id/transactions", s.handleListTransactions)

	users.POST("/:user_id/exclusions", s.handleAddExclusion)
	users.DELETE("/:user_id/exclusions", s.handleRemoveExclusion)
	users.GET("/:user_id/exclusions", s.handleExclusionHistory)
	users.GET("/:user_id/exclusions/status", s.handleExclusionStatus)

	users.POST("/:user_id/risk/assess", s.routeLimited("risk_assess"), s.handleAssessRisk)
	users.GET("/:user_id/risk", s.handleLatestRisk)
	users.GET("/:user_id/risk/history", s.handleRiskHistory)
	users.GET("/:user_id/wellness", s.handleWellnessReport)

	v1.GET("/audit/report", s.handleAuditReport)

	return router
}

// transactionMiddleware chains idempotency, the route limiter and the
// record handler for the transaction endpoint.
func (s *Server) transactionMiddleware() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{s.routeLimited("transaction")}
	if s.idempotency != nil {
		chain = append(chain, middleware.Idempotency(s.idempotency, s.log))
	}
	return append(chain, s.handleRecordTransaction)
}

func (s *Server) routeLimited(route string) gin.HandlerFunc {
	if s.rateLimit == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return s.rateLimit.Route(route)
}

func (s *Server) handleHealth(c *gin.Context) {
	results := s.health.Check(c.Request.Context())

	status := http.StatusOK
	for _, result := range results {
		if result != "OK" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(status, gin.H{"components": results})
}

// respondError maps application errors to HTTP responses. Internal
// details are logged; only the user-facing message is returned.
func (s *Server) respondError(c *gin.Context, err error) {
	userMessage, retryable := "", false
	if s.errHandler != nil {
		userMessage, retryable = s.errHandler.Handle(c.Request.Context(), err)
	}
	if userMessage == "" {
		userMessage = "Something went wrong. Please try again later"
	}

	c.JSON(statusFor(err), gin.H{
		"error":     userMessage,
		"retryable": retryable,
	})
}

func statusFor(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case "E100":
		return http.StatusBadRequest
	case "E300":
		return http.StatusServiceUnavailable
	case "E400":
		return http.StatusConflict
	case "E404":
		return http.StatusNotFound
	case "E500":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/playguard/playguard/pkg/logger"
)

const fallbackUserMessage = "Something went wrong. Please try again later"

var errorRecorder = func(code, severity string) {}

// RegisterErrorRecorder allows external packages to observe handled errors.
func RegisterErrorRecorder(recorder func(code, severity string)) {
	if recorder == nil {
		errorRecorder = func(string, string) {}
		return
	}

	errorRecorder = recorder
}

// Handler is the single sink for errors that reach a transport boundary:
// it logs, counts, reports to Sentry by severity, and produces the message
// safe to show the caller.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle returns the user-facing message and whether retrying makes sense.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		h.handleUnknown(ctx, log, err)
		return fallbackUserMessage, false
	}

	args := []any{
		slog.String("code", appErr.Code),
		slog.String("message", appErr.Message),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		args = append(args, slog.String("correlation_id", id))
	}

	log.Error("application error", args...)
	errorRecorder(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.report(err)
	}

	if appErr.UserMessage != "" {
		return appErr.UserMessage, appErr.Retryable
	}

	return fallbackUserMessage, appErr.Retryable
}

// Errors that are not AppErrors escaped a service without classification;
// treat them as high severity.
func (h *Handler) handleUnknown(ctx context.Context, log *slog.Logger, err error) {
	args := []any{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
		slog.Bool("retryable", false),
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		args = append(args, slog.String("correlation_id", id))
	}

	log.Error("unknown error", args...)
	errorRecorder("unknown", string(SeverityHigh))

	if h.sentryEnabled {
		h.report(err)
	}
}

func (h *Handler) report(err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}
			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}

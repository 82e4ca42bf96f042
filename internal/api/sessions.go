package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/playguard/playguard/internal/errors"
)

type startSessionRequest struct {
	PlatformID string `json:"platform_id" binding:"required"`
	Currency   string `json:"currency"`
}

func (s *Server) handleStartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.sessions.Start(c.Request.Context(), c.Param("user_id"), req.PlatformID, req.Currency)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !result.OK {
		c.JSON(statusForReason(result.Reason), result)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleEndSession(c *gin.Context) {
	result, err := s.sessions.End(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !result.OK {
		c.JSON(statusForReason(result.Reason), result)
		return
	}

	c.JSON(http.StatusOK, result)
}

type updateStatsRequest struct {
	TotalWagered float64 `json:"total_wagered" binding:"min=0"`
	TotalWon     float64 `json:"total_won" binding:"min=0"`
}

func (s *Server) handleUpdateStats(c *gin.Context) {
	var req updateStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.sessions.UpdateStats(c.Request.Context(), c.Param("session_id"), req.TotalWagered, req.TotalWon)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !result.OK {
		c.JSON(statusForReason(result.Reason), result)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCheckDuration(c *gin.Context) {
	result, err := s.sessions.CheckDuration(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !result.OK {
		c.JSON(statusForReason(result.Reason), result)
		return
	}

	c.JSON(http.StatusOK, result)
}

type enforceBreakRequest struct {
	DurationMinutes float64 `json:"duration_minutes" binding:"min=0"`
}

func (s *Server) handleEnforceBreak(c *gin.Context) {
	var req enforceBreakRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, apperrors.NewValidationError(err.Error()))
			return
		}
	}

	result, err := s.sessions.EnforceBreak(c.Request.Context(), c.Param("user_id"), req.DurationMinutes)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSessionSummary(c *gin.Context) {
	summary, err := s.sessions.GetSummary(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRecentSessions(c *gin.Context) {
	limit := intQuery(c, "limit", 10)

	sessions, err := s.sessions.RecentSessions(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// statusForReason maps a domain-rule rejection to a response status. These
// are policy outcomes, not errors; the body carries the structured result.
func statusForReason(reason apperrors.Reason) int {
	switch reason {
	case apperrors.ReasonNotFound:
		return http.StatusNotFound
	case apperrors.ReasonAlreadyActive, apperrors.ReasonAlreadyEnded:
		return http.StatusConflict
	case apperrors.ReasonExclusionActive, apperrors.ReasonOnCooldown:
		return http.StatusForbidden
	case apperrors.ReasonLimitExceeded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

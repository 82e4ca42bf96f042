package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playguard/playguard/internal/domain"
	apperrors "github.com/playguard/playguard/internal/errors"
)

type setLimitRequest struct {
	Kind       string  `json:"kind" binding:"required,oneof=daily weekly monthly"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
	PeriodDays int     `json:"period_days"`
}

func (s *Server) handleSetLimit(c *gin.Context) {
	var req setLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.limits.Set(c.Request.Context(), c.Param("user_id"), req.Amount, domain.LimitKind(req.Kind), req.PeriodDays)
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

func (s *Server) handleGetLimit(c *gin.Context) {
	kind := domain.LimitKind(c.Param("kind"))
	if !kind.Valid() {
		s.respondError(c, apperrors.NewValidationError("unknown limit kind"))
		return
	}

	limit, err := s.limits.Get(c.Request.Context(), c.Param("user_id"), kind)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if limit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no limit configured"})
		return
	}

	c.JSON(http.StatusOK, limit)
}

func (s *Server) handleRemoveLimit(c *gin.Context) {
	kind := domain.LimitKind(c.Param("kind"))
	if !kind.Valid() {
		s.respondError(c, apperrors.NewValidationError("unknown limit kind"))
		return
	}

	result, err := s.limits.Remove(c.Request.Context(), c.Param("user_id"), kind)
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

type checkLimitRequest struct {
	Amount float64 `json:"amount" binding:"min=0"`
}

func (s *Server) handleCheckLimit(c *gin.Context) {
	var req checkLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.limits.Check(c.Request.Context(), c.Param("user_id"), req.Amount)
	if err != nil {
		s.respondError(c, err)
		return
	}

	// a denied check is a successful evaluation, not an error
	c.JSON(http.StatusOK, result)
}

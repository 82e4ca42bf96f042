package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/playguard/playguard/internal/errors"
)

type addExclusionRequest struct {
	DurationDays int    `json:"duration_days" binding:"required,gt=0"`
	Reason       string `json:"reason"`
}

func (s *Server) handleAddExclusion(c *gin.Context) {
	var req addExclusionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.guard.Add(c.Request.Context(), c.Param("user_id"), req.DurationDays, req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !result.OK {
		c.JSON(http.StatusConflict, result)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleRemoveExclusion(c *gin.Context) {
	result, err := s.guard.Remove(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExclusionHistory(c *gin.Context) {
	history, err := s.guard.History(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exclusions": history})
}

func (s *Server) handleExclusionStatus(c *gin.Context) {
	excluded, exclusion, err := s.guard.IsExcluded(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	response := gin.H{"excluded": excluded}
	if exclusion != nil {
		response["end_time"] = exclusion.EndTime
	}

	c.JSON(http.StatusOK, response)
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/playguard/playguard/internal/errors"
)

func (s *Server) handleAssessRisk(c *gin.Context) {
	assessment, err := s.risk.CalculateRiskScore(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, assessment)
}

func (s *Server) handleLatestRisk(c *gin.Context) {
	assessment, err := s.risk.Latest(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if assessment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user has not been assessed yet"})
		return
	}

	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleRiskHistory(c *gin.Context) {
	limit := intQuery(c, "limit", 20)

	history, err := s.risk.History(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessments": history})
}

func (s *Server) handleWellnessReport(c *gin.Context) {
	report, err := s.risk.GenerateWellnessReport(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAuditReport(c *gin.Context) {
	from, err := timeQuery(c, "from", time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		s.respondError(c, apperrors.NewValidationError("invalid from timestamp"))
		return
	}

	to, err := timeQuery(c, "to", time.Now().UTC())
	if err != nil {
		s.respondError(c, apperrors.NewValidationError("invalid to timestamp"))
		return
	}

	report, err := s.audit.GenerateReport(c.Request.Context(), from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func timeQuery(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}

	return time.Parse(time.RFC3339, raw)
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/playguard/playguard/internal/errors"
)

type recordTransactionRequest struct {
	Amount   float64           `json:"amount" binding:"min=0"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleRecordTransaction(c *gin.Context) {
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.limits.RecordTransaction(c.Request.Context(), c.Param("user_id"), req.Amount, req.Metadata)
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

func (s *Server) handleListTransactions(c *gin.Context) {
	windowDays := intQuery(c, "window_days", 7)

	transactions, err := s.ledger.TransactionsInWindow(
		c.Request.Context(),
		c.Param("user_id"),
		time.Duration(windowDays)*24*time.Hour,
	)
	if err != nil {
		s.respondError(c, err)
		return
	}

	spend, err := s.ledger.SpendInWindow(
		c.Request.Context(),
		c.Param("user_id"),
		time.Duration(windowDays)*24*time.Hour,
	)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window_days":  windowDays,
		"total_spend":  spend,
		"transactions": transactions,
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}

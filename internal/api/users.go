package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/playguard/playguard/internal/errors"
)

type registerUserRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (s *Server) handleRegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := s.users.Register(c.Request.Context(), req.WalletAddress)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleGetUser(c *gin.Context) {
	profile, err := s.users.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

type updateWalletRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

func (s *Server) handleUpdateWallet(c *gin.Context) {
	var req updateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError(err.Error()))
		return
	}

	profile, err := s.users.UpdateWallet(c.Request.Context(), c.Param("user_id"), req.WalletAddress)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleDeactivateUser(c *gin.Context) {
	if err := s.users.Deactivate(c.Request.Context(), c.Param("user_id")); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

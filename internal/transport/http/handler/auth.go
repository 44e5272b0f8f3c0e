package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"companion-ai/internal/app"
	"companion-ai/internal/transport/http/middleware"
	"companion-ai/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
	chatService *app.ChatService
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=128"`
}

func NewAuthHandler(authService *app.AuthService, chatService *app.ChatService) *AuthHandler {
	return &AuthHandler{authService: authService, chatService: chatService}
}

// Login issues a token bound to a fresh chat session and returns its
// initial state, greeting included.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	ctrl, err := h.chatService.Open(result.SessionID, true)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "open session failed")
		return
	}

	response.OK(c, gin.H{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"email":      result.Email,
		"session":    ctrl.Snapshot(),
	})
}

// Logout revokes the token and drops its session.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "logout failed")
		return
	}
	h.chatService.Close(claims.SessionID)

	response.OK(c, gin.H{"session_id": claims.SessionID})
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	response.OK(c, gin.H{
		"email":      claims.Email,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Time,
	})
}

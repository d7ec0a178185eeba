package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/domain"
	"github.com/Hyochang098/auth-template/internal/http/middleware"
	"github.com/Hyochang098/auth-template/internal/service"
)

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies *CookieWriter
	Logger  *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, cookies *CookieWriter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookies: cookies, Logger: logger}
}

// SignUp registers a new account.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "Invalid sign-up request."})
		return
	}

	if err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Login authenticates and returns the token pair in the body and as
// httpOnly cookies.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "Email and password are required."})
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.Cookies.Issue(c, resp.AccessToken, resp.RefreshToken)
	c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a refresh token, read from the refreshToken header
// first and the cookie second, for a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented := strings.TrimSpace(c.GetHeader("refreshToken"))
	if presented == "" {
		if v, err := c.Cookie(RefreshTokenCookie); err == nil {
			presented = strings.TrimSpace(v)
		}
	}
	if presented == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "Refresh token missing."})
		return
	}

	resp, err := h.Auth.Refresh(c.Request.Context(), presented)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.Cookies.Issue(c, resp.AccessToken, resp.RefreshToken)
	c.JSON(http.StatusOK, resp)
}

// Logout removes the caller's refresh-token record, blacklists the access
// token for its remaining lifetime, and clears both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_token", "error_description": domain.ErrMissingToken.Message})
		return
	}
	accessToken, _ := middleware.GetAccessToken(c)

	if err := h.Auth.Logout(c.Request.Context(), claims.UserID, accessToken); err != nil {
		h.writeError(c, err)
		return
	}

	h.Cookies.Clear(c)
	c.Status(http.StatusNoContent)
}

// CheckEmail reports whether the email is free to register.
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	available, err := h.Auth.IsEmailAvailable(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// writeError maps typed auth errors to stable client responses and
// collapses everything else to one generic server error.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Message})
		return
	}
	if h.Logger != nil {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected server error."})
}

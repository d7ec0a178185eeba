package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/domain"
	"github.com/Hyochang098/auth-template/internal/http/middleware"
	"github.com/Hyochang098/auth-template/internal/service"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserHandler serves profile endpoints.
type UserHandler struct {
	Users  *service.UserService
	Logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// Me returns the authenticated caller's own profile.
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_token", "error_description": domain.ErrMissingToken.Message})
		return
	}

	user, err := h.Users.FindMe(c.Request.Context(), claims.UserID)
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Message})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("profile lookup failed", zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected server error."})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hyochang098/auth-template/internal/domain"
	"github.com/Hyochang098/auth-template/internal/service"
	"github.com/Hyochang098/auth-template/internal/token"
)

const (
	claimsKey      = "accessClaims"
	accessTokenKey = "accessToken"
)

// Auth validates the access token and attaches its claims.
type Auth struct {
	Sessions *service.AuthService
}

func NewAuth(sessions *service.AuthService) *Auth {
	return &Auth{Sessions: sessions}
}

// Require ensures the request carries a valid, non-revoked access token.
// The Authorization header wins; the accessToken cookie is the fallback
// for browser clients.
func (m *Auth) Require(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		if v, err := c.Cookie("accessToken"); err == nil {
			raw = strings.TrimSpace(v)
		}
	}
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrMissingToken.Code, "error_description": domain.ErrMissingToken.Message})
		return
	}

	claims, err := m.Sessions.ValidateAccess(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrInvalidAccessToken.Code, "error_description": domain.ErrInvalidAccessToken.Message})
		return
	}

	c.Set(claimsKey, claims)
	c.Set(accessTokenKey, raw)
	c.Next()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetClaims exposes the verified access token claims to handlers.
func GetClaims(c *gin.Context) (token.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return token.Claims{}, false
	}
	claims, ok := value.(token.Claims)
	return claims, ok
}

// GetAccessToken returns the raw token the request authenticated with.
func GetAccessToken(c *gin.Context) (string, bool) {
	value, ok := c.Get(accessTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := value.(string)
	return raw, ok
}

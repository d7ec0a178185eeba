package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hyochang098/auth-template/internal/config"
)

// Cookie names shared with the auth middleware.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieWriter issues and clears the httpOnly token cookies. Tokens also
// travel in the response body; the cookies exist so browser clients never
// have to hold tokens in script-reachable storage.
type CookieWriter struct {
	secure        bool
	sameSite      http.SameSite
	domain        string
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
}

func NewCookieWriter(cfg config.Config) *CookieWriter {
	return &CookieWriter{
		secure:        cfg.CookieSecure,
		sameSite:      parseSameSite(cfg.CookieSameSite),
		domain:        cfg.CookieDomain,
		accessMaxAge:  cfg.AccessTokenTTL,
		refreshMaxAge: cfg.RefreshTokenTTL,
	}
}

// Issue sets both token cookies with max-age equal to each token's
// validity.
func (w *CookieWriter) Issue(c *gin.Context, accessToken, refreshToken string) {
	w.set(c, AccessTokenCookie, accessToken, int(w.accessMaxAge.Seconds()))
	w.set(c, RefreshTokenCookie, refreshToken, int(w.refreshMaxAge.Seconds()))
}

// Clear expires both token cookies.
func (w *CookieWriter) Clear(c *gin.Context) {
	w.set(c, AccessTokenCookie, "", -1)
	w.set(c, RefreshTokenCookie, "", -1)
}

func (w *CookieWriter) set(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   w.domain,
		MaxAge:   maxAge,
		Secure:   w.secure,
		HttpOnly: true,
		SameSite: w.sameSite,
	})
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

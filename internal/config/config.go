package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSecretLength is the shortest signing secret accepted for HS256.
const MinSecretLength = 32

// Config contains runtime configuration values. It is built once at startup
// and passed by injection; nothing mutates it afterwards.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWTSecret signs both access and refresh tokens. Shorter than
	// MinSecretLength is a fatal startup condition.
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RefreshCacheTTL bounds the distributed refresh-token mirror; it is a
	// cache horizon independent of the record's own expiry.
	RefreshCacheTTL time.Duration
	// BlacklistTTL overrides the per-call remaining validity for revocation
	// entries when set; zero keeps the per-call TTL.
	BlacklistTTL      time.Duration
	BlacklistLocalTTL time.Duration

	CookieSecure   bool
	CookieSameSite string
	CookieDomain   string

	RateLimitRPM int

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool

	TelemetryEndpoint string
	TelemetryInsecure bool

	// AdminEmail/AdminPassword seed a default admin account when both are
	// set; leaving them empty skips the bootstrap.
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < MinSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength)
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		ServiceName:          getEnv("SERVICE_NAME", "auth-template"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		JWTSecret:            secret,
		AccessTokenTTL:       getSeconds("ACCESS_TOKEN_VALIDITY_SECONDS", 1800*time.Second),
		RefreshTokenTTL:      getSeconds("REFRESH_TOKEN_VALIDITY_SECONDS", 604800*time.Second),
		RefreshCacheTTL:      getSeconds("REFRESH_CACHE_TTL_SECONDS", 900*time.Second),
		BlacklistTTL:         getSeconds("BLACKLIST_TTL_SECONDS", 0),
		BlacklistLocalTTL:    getSeconds("BLACKLIST_LOCAL_TTL_SECONDS", 1800*time.Second),
		CookieSecure:         getBool("COOKIE_SECURE", true),
		CookieSameSite:       getEnv("COOKIE_SAME_SITE", "Lax"),
		CookieDomain:         os.Getenv("COOKIE_DOMAIN"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		AdminEmail:           strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return Config{}, fmt.Errorf("token validity windows must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getSeconds(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}

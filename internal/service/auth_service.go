package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/cache"
	"github.com/Hyochang098/auth-template/internal/domain"
	"github.com/Hyochang098/auth-template/internal/password"
	"github.com/Hyochang098/auth-template/internal/repository"
	"github.com/Hyochang098/auth-template/internal/token"
)

// TokenResponse is returned from login and refresh. Name is only populated
// on login; refresh works from token claims alone and callers needing the
// display name query the user record separately.
type TokenResponse struct {
	UserID       int64  `json:"userId"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthService coordinates the session lifecycle: issuing the token pair on
// login, rotating the refresh token on every use, and revoking the access
// token on logout.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.RefreshTokenRepository
	mirror    *cache.RefreshTokenCache
	blacklist *cache.RevocationStore
	codec     *token.Codec
	node      *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	mirror *cache.RefreshTokenCache,
	blacklist *cache.RevocationStore,
	codec *token.Codec,
	node *snowflake.Node,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		mirror:    mirror,
		blacklist: blacklist,
		codec:     codec,
		node:      node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/Hyochang098/auth-template/internal/service"),
	}
}

// SignUp registers a new user with role GENERAL.
func (s *AuthService) SignUp(ctx context.Context, email, pass, name string) error {
	ctx, span := s.startSpan(ctx, "AuthService.SignUp")
	defer span.End()

	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	exists, err := s.users.ExistsByEmail(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("signup check email: %w", err)
	}
	if exists {
		return domain.ErrEmailTaken
	}

	hashed, err := password.Hash(pass)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("signup hash password: %w", err)
	}

	user := domain.User{
		ID:           s.node.Generate().Int64(),
		Email:        normalized,
		Name:         name,
		PasswordHash: hashed,
		Role:         domain.RoleGeneral,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("signup create user: %w", err)
	}

	s.audit("signup.success", "user_id", created.ID)
	return nil
}

// Login verifies credentials, issues a fresh token pair, and overwrites the
// user's refresh-token record. Every failure before issuance maps to the
// same InvalidCredentials error so the response does not reveal whether the
// email exists.
func (s *AuthService) Login(ctx context.Context, email, pass string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.audit("login.failure", "reason", "unknown_email")
			return nil, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return nil, fmt.Errorf("login load user: %w", err)
	}

	ok, verr := password.Verify(pass, user.PasswordHash)
	if verr != nil || !ok {
		s.audit("login.failure", "reason", "bad_password", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}

	resp, err := s.issuePair(ctx, user.ID, user.Email, user.Role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp.Name = user.Name

	s.audit("login.success", "user_id", user.ID)
	return resp, nil
}

// Refresh exchanges a valid refresh token for a new pair and rotates the
// stored record, invalidating the presented token even though it is still
// within its original validity window.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	res := s.codec.Verify(presented)
	if !res.OK() {
		// The classification is for logs only; the client always sees the
		// same uniform failure.
		s.audit("refresh.failure", "reason", res.Status.String())
		return nil, domain.ErrInvalidRefreshToken
	}
	userID := res.Claims.UserID

	storedHash, storedExpiry, err := s.lookupRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	if storedExpiry.Before(now) {
		s.mirror.Evict(ctx, userID)
		s.audit("refresh.failure", "reason", "record_expired", "user_id", userID)
		return nil, domain.ErrInvalidRefreshToken
	}

	matched, legacy := matchRefreshSecret(presented, storedHash)
	if !matched {
		s.audit("refresh.failure", "reason", "hash_mismatch", "user_id", userID)
		return nil, domain.ErrInvalidRefreshToken
	}
	if legacy {
		// Plaintext records predate hashing. Surfaced as a metric so they
		// can be tracked down and migrated.
		s.logger.Warn("refresh matched legacy plaintext record",
			zap.Int64("user_id", userID),
			zap.String("metric", "refresh_plaintext_fallback"),
		)
	}

	email := strings.ToLower(strings.TrimSpace(res.Claims.Email))
	role := res.Claims.Role

	newAccess, err := s.codec.IssueAccess(userID, email, role)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh issue access token: %w", err)
	}
	newRefresh, err := s.codec.IssueRefresh(userID, email, role)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh issue refresh token: %w", err)
	}
	newHash, err := password.Hash(newRefresh)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh hash token: %w", err)
	}
	newExpiry := s.refreshExpiry(now)

	rotated, err := s.tokens.Rotate(ctx, userID, storedHash, newHash, newExpiry)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// Lost a concurrent rotation race, or the cached hash was stale.
		// Either way the presented token no longer matches the record.
		s.mirror.Evict(ctx, userID)
		s.audit("refresh.failure", "reason", "rotation_conflict", "user_id", userID)
		return nil, domain.ErrInvalidRefreshToken
	}
	s.mirror.Store(ctx, userID, newHash, newExpiry)

	s.audit("refresh.success", "user_id", userID)
	return &TokenResponse{
		UserID:       userID,
		Email:        email,
		Role:         role,
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
	}, nil
}

// Logout deletes the user's refresh-token record from both the durable
// store and the cache, then blacklists the presented access token for its
// remaining natural lifetime. Calling it twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID int64, accessToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("logout delete refresh token: %w", err)
	}
	s.mirror.Evict(ctx, userID)

	remaining := s.codec.RemainingSeconds(accessToken)
	s.blacklist.Revoke(ctx, accessToken, time.Duration(remaining)*time.Second)

	s.audit("logout.success", "user_id", userID)
	return nil
}

// IsEmailAvailable reports whether no registered user holds the normalized
// email.
func (s *AuthService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	exists, err := s.users.ExistsByEmail(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("check email availability: %w", err)
	}
	return !exists, nil
}

// ValidateAccess verifies an access token and rejects blacklisted ones.
// Used by the auth middleware on every protected request.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (token.Claims, error) {
	res := s.codec.Verify(accessToken)
	if !res.OK() {
		return token.Claims{}, domain.ErrInvalidAccessToken
	}
	if s.blacklist.IsRevoked(ctx, accessToken) {
		s.audit("access.rejected", "reason", "revoked", "user_id", res.Claims.UserID)
		return token.Claims{}, domain.ErrInvalidAccessToken
	}
	return res.Claims, nil
}

// lookupRecord performs the cache-aside read: mirror first, durable store
// on a miss, promoting the durable record into the mirror.
func (s *AuthService) lookupRecord(ctx context.Context, userID int64) (string, time.Time, error) {
	if entry, ok := s.mirror.Get(ctx, userID); ok {
		return entry.TokenHash, entry.ExpiresAt, nil
	}

	rec, err := s.tokens.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.audit("refresh.failure", "reason", "record_not_found", "user_id", userID)
			return "", time.Time{}, domain.ErrRefreshTokenNotFound
		}
		return "", time.Time{}, fmt.Errorf("refresh load record: %w", err)
	}
	s.mirror.Store(ctx, userID, rec.TokenHash, rec.ExpiresAt)
	return rec.TokenHash, rec.ExpiresAt, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID int64, email, role string) (*TokenResponse, error) {
	access, err := s.codec.IssueAccess(userID, email, role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(userID, email, role)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	hash, err := password.Hash(refresh)
	if err != nil {
		return nil, fmt.Errorf("hash refresh token: %w", err)
	}
	expiresAt := s.refreshExpiry(time.Now())

	record := domain.RefreshTokenRecord{
		ID:        s.node.Generate().Int64(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	s.mirror.Store(ctx, userID, hash, expiresAt)

	return &TokenResponse{
		UserID:       userID,
		Email:        email,
		Role:         role,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// refreshExpiry derives the record expiry from now plus the configured
// refresh validity; it is never extended implicitly.
func (s *AuthService) refreshExpiry(now time.Time) time.Time {
	ttl := s.codec.RefreshTTL()
	if ttl <= 0 {
		return now
	}
	return now.Add(ttl)
}

// matchRefreshSecret first attempts the one-way hash comparison, then falls
// back to exact equality for records written before hashing was
// introduced. legacy reports whether the fallback path matched.
func matchRefreshSecret(presented, stored string) (matched, legacy bool) {
	if ok, err := password.Verify(presented, stored); err == nil && ok {
		return true, false
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1 {
		return true, true
	}
	return false, false
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", domain.NewValidationError("Email is required.")
	}
	return strings.ToLower(trimmed), nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

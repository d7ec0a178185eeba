// Package token signs and verifies the compact JWTs issued by the service.
// Access and refresh tokens share one format and signing secret and differ
// only in validity; any standard JWT verifier holding the secret can check
// them.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/Hyochang098/auth-template/internal/config"
)

// Status classifies the outcome of Verify. The set is closed; callers
// switch over it instead of inspecting errors.
type Status uint8

const (
	StatusOK Status = iota
	StatusExpired
	StatusMalformed
	StatusUnsupported
	StatusBadSignature
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusExpired:
		return "expired"
	case StatusMalformed:
		return "malformed"
	case StatusUnsupported:
		return "unsupported"
	case StatusBadSignature:
		return "bad_signature"
	default:
		return "invalid"
	}
}

// Claims carries the identity embedded in a token.
type Claims struct {
	UserID    int64
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerifyResult is the closed result of Verify. Claims are populated when
// Status is StatusOK, and also on StatusExpired so callers can reason about
// the expired token's identity without trusting it.
type VerifyResult struct {
	Status Status
	Claims Claims
}

// OK reports whether the token verified cleanly.
func (r VerifyResult) OK() bool { return r.Status == StatusOK }

type customClaims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

// Codec signs and verifies tokens with a shared HS256 secret. It is
// stateless and safe for concurrent use.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec validates the signing secret and builds a codec. A short secret
// is a fatal startup condition, not a per-call error.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) < config.MinSecretLength {
		return nil, fmt.Errorf("token: signing secret must be at least %d bytes", config.MinSecretLength)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token: validity windows must be positive")
	}
	return &Codec{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// AccessTTL returns the configured access-token validity.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh-token validity.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess signs a short-lived access token.
func (c *Codec) IssueAccess(userID int64, email, role string) (string, error) {
	return c.Issue(userID, email, role, c.accessTTL)
}

// IssueRefresh signs a long-lived refresh token.
func (c *Codec) IssueRefresh(userID int64, email, role string) (string, error) {
	return c.Issue(userID, email, role, c.refreshTTL)
}

// Issue signs a token with subject=email, custom userId and role claims,
// and expiry now+validity.
func (c *Codec) Issue(userID int64, email, role string, validity time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: c.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := josejwt.Claims{
		Subject:  email,
		IssuedAt: josejwt.NewNumericDate(now),
		Expiry:   josejwt.NewNumericDate(now.Add(validity)),
	}
	custom := customClaims{UserID: userID, Role: role}

	signed, err := josejwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. It never panics or returns a raw
// parse error for attacker-controlled input.
func (c *Codec) Verify(token string) VerifyResult {
	parsed, err := josejwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		if strings.Contains(err.Error(), "algorithm") {
			return VerifyResult{Status: StatusUnsupported}
		}
		return VerifyResult{Status: StatusMalformed}
	}

	var std josejwt.Claims
	var custom customClaims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		if errors.Is(err, jose.ErrCryptoFailure) {
			return VerifyResult{Status: StatusBadSignature}
		}
		return VerifyResult{Status: StatusInvalid}
	}

	claims := Claims{
		UserID: custom.UserID,
		Email:  std.Subject,
		Role:   custom.Role,
	}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	if std.Expiry != nil {
		claims.ExpiresAt = std.Expiry.Time()
	}

	if err := std.Validate(josejwt.Expected{Time: time.Now()}); err != nil {
		if errors.Is(err, josejwt.ErrExpired) {
			return VerifyResult{Status: StatusExpired, Claims: claims}
		}
		return VerifyResult{Status: StatusInvalid}
	}

	return VerifyResult{Status: StatusOK, Claims: claims}
}

// RemainingSeconds reports the token's remaining validity, 0 when the token
// is expired or unparsable.
func (c *Codec) RemainingSeconds(token string) int64 {
	res := c.Verify(token)
	if !res.OK() {
		return 0
	}
	remaining := time.Until(res.Claims.ExpiresAt)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

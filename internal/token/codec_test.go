package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hyochang098/auth-template/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(testSecret, time.Minute, time.Hour)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := token.NewCodec("too-short", time.Minute, time.Hour)
	require.Error(t, err)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.IssueAccess(42, "user@example.com", "GENERAL")
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(signed, ".")))

	res := codec.Verify(signed)
	require.True(t, res.OK())
	require.Equal(t, int64(42), res.Claims.UserID)
	require.Equal(t, "user@example.com", res.Claims.Email)
	require.Equal(t, "GENERAL", res.Claims.Role)
	require.False(t, res.Claims.ExpiresAt.IsZero())
}

func TestVerifyExpiredKeepsClaims(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(7, "old@example.com", "GENERAL", -time.Minute)
	require.NoError(t, err)

	res := codec.Verify(signed)
	require.Equal(t, token.StatusExpired, res.Status)
	require.False(t, res.OK())
	require.Equal(t, int64(7), res.Claims.UserID)
	require.Equal(t, "old@example.com", res.Claims.Email)
}

func TestVerifyTamperedPayload(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.IssueAccess(1, "a@example.com", "GENERAL")
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[10] == 'A' {
		payload[10] = 'B'
	} else {
		payload[10] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	res := codec.Verify(tampered)
	require.Equal(t, token.StatusBadSignature, res.Status)
}

func TestVerifyWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := token.NewCodec("ffffffffffffffffffffffffffffffff", time.Minute, time.Hour)
	require.NoError(t, err)

	signed, err := other.IssueAccess(1, "a@example.com", "GENERAL")
	require.NoError(t, err)

	res := codec.Verify(signed)
	require.Equal(t, token.StatusBadSignature, res.Status)
}

func TestVerifyGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		res := codec.Verify(input)
		require.Equal(t, token.StatusMalformed, res.Status, "input %q", input)
	}
}

func TestVerifyUnsupportedAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	res := codec.Verify(header + "." + body + ".sig")
	require.Equal(t, token.StatusUnsupported, res.Status)
}

func TestRemainingSeconds(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Issue(1, "a@example.com", "GENERAL", 10*time.Minute)
	require.NoError(t, err)
	remaining := codec.RemainingSeconds(signed)
	require.Greater(t, remaining, int64(9*60))
	require.LessOrEqual(t, remaining, int64(10*60))

	expired, err := codec.Issue(1, "a@example.com", "GENERAL", -time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(0), codec.RemainingSeconds(expired))

	require.Equal(t, int64(0), codec.RemainingSeconds("garbage"))
}

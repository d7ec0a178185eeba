package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/cache"
	"github.com/Hyochang098/auth-template/internal/domain"
	"github.com/Hyochang098/auth-template/internal/password"
	"github.com/Hyochang098/auth-template/internal/service"
	"github.com/Hyochang098/auth-template/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	auth      *service.AuthService
	users     *memoryUserRepo
	tokens    *memoryTokenRepo
	mirror    *cache.RefreshTokenCache
	blacklist *cache.RevocationStore
	codec     *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := token.NewCodec(testSecret, time.Minute, time.Hour)
	require.NoError(t, err)

	mirror, err := cache.NewRefreshTokenCache(nil, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(mirror.Close)

	blacklist, err := cache.NewRevocationStore(nil, time.Minute, 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(blacklist.Close)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := newMemoryUserRepo()
	tokens := newMemoryTokenRepo()
	auth := service.NewAuthService(users, tokens, mirror, blacklist, codec, node, zap.NewNop())

	return &fixture{auth: auth, users: users, tokens: tokens, mirror: mirror, blacklist: blacklist, codec: codec}
}

func (f *fixture) seedUser(t *testing.T, email, pass string) domain.User {
	t.Helper()
	hash, err := password.Hash(pass)
	require.NoError(t, err)
	user, err := f.users.Create(context.Background(), domain.User{
		ID:           int64(len(f.users.byEmail) + 1),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         domain.RoleGeneral,
	})
	require.NoError(t, err)
	return user
}

func TestSignUpThenLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.auth.SignUp(ctx, " User@Example.COM ", "password123", "New User"))

	// Stored under the normalized key, so any casing logs in.
	resp, err := f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", resp.Email)
	require.Equal(t, "New User", resp.Name)
	require.Equal(t, domain.RoleGeneral, resp.Role)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	res := f.codec.Verify(resp.AccessToken)
	require.True(t, res.OK())
	require.Equal(t, resp.UserID, res.Claims.UserID)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "taken@example.com", "password123")

	err := f.auth.SignUp(ctx, "Taken@Example.com", "password123", "Someone")
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "user@example.com", "password123")

	_, err := f.auth.Login(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, "user@example.com", "wrong password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginOverwritesRefreshRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "user@example.com", "password123")

	first, err := f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	// Only the latest refresh token survives; a single record per user.
	require.Len(t, f.tokens.records, 1)
	_, err = f.auth.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "user@example.com", "password123")

	login, err := f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	refreshed, err := f.auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, login.UserID, refreshed.UserID)
	require.Equal(t, login.Email, refreshed.Email)
	require.Empty(t, refreshed.Name)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.NotEqual(t, login.AccessToken, refreshed.AccessToken)

	// The presented token is invalidated by rotation.
	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	// The replacement works.
	_, err = f.auth.Refresh(ctx, refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsGarbageAndExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Refresh(ctx, "not-a-token")
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	expired, err := f.codec.Issue(42, "user@example.com", domain.RoleGeneral, -time.Minute)
	require.NoError(t, err)
	_, err = f.auth.Refresh(ctx, expired)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshWithoutRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	orphan, err := f.codec.IssueRefresh(42, "user@example.com", domain.RoleGeneral)
	require.NoError(t, err)
	_, err = f.auth.Refresh(ctx, orphan)
	require.ErrorIs(t, err, domain.ErrRefreshTokenNotFound)
}

func TestRefreshExpiredRecordEvicted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "user@example.com", "password123")

	login, err := f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	f.tokens.expireAll()
	f.mirror.Evict(ctx, login.UserID)

	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	_, ok := f.mirror.Get(ctx, login.UserID)
	require.False(t, ok)
}

func TestRefreshLegacyPlaintextRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	legacy, err := f.codec.IssueRefresh(42, "user@example.com", domain.RoleGeneral)
	require.NoError(t, err)

	// Records written before hashing store the token verbatim.
	f.tokens.put(domain.RefreshTokenRecord{
		ID:        1,
		UserID:    42,
		TokenHash: legacy,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	refreshed, err := f.auth.Refresh(ctx, legacy)
	require.NoError(t, err)
	require.Equal(t, int64(42), refreshed.UserID)

	// The rotated record is hashed; the raw token never matches again.
	rec, err := f.tokens.FindByUserID(ctx, 42)
	require.NoError(t, err)
	require.NotEqual(t, refreshed.RefreshToken, rec.TokenHash)
	ok, err := password.Verify(refreshed.RefreshToken, rec.TokenHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "user@example.com", "password123")

	login, err := f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.auth.Refresh(ctx, login.RefreshToken)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
		}
	}
	require.Equal(t, 1, wins)
}

func TestLogoutRevokesAndDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "user@example.com", "password123")

	login, err := f.auth.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	_, err = f.auth.ValidateAccess(ctx, login.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, login.UserID, login.AccessToken))

	// The access token is blacklisted for its remaining validity.
	_, err = f.auth.ValidateAccess(ctx, login.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidAccessToken)

	// The refresh record and its mirror are gone.
	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshTokenNotFound)

	// Logging out twice is not an error.
	require.NoError(t, f.auth.Logout(ctx, login.UserID, login.AccessToken))
}

func TestValidateAccessRejectsInvalidTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.ValidateAccess(ctx, "garbage")
	require.ErrorIs(t, err, domain.ErrInvalidAccessToken)

	expired, err := f.codec.Issue(1, "user@example.com", domain.RoleGeneral, -time.Minute)
	require.NoError(t, err)
	_, err = f.auth.ValidateAccess(ctx, expired)
	require.ErrorIs(t, err, domain.ErrInvalidAccessToken)
}

func TestIsEmailAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedUser(t, "taken@example.com", "password123")

	available, err := f.auth.IsEmailAvailable(ctx, "free@example.com")
	require.NoError(t, err)
	require.True(t, available)

	available, err = f.auth.IsEmailAvailable(ctx, " Taken@Example.COM ")
	require.NoError(t, err)
	require.False(t, available)

	_, err = f.auth.IsEmailAvailable(ctx, "   ")
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "validation_error", authErr.Code)
}

type memoryUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byEmail: make(map[string]domain.User)}
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *memoryUserRepo) FindByID(ctx context.Context, userID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byEmail {
		if user.ID == userID {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byEmail[user.Email] = user
	return user, nil
}

type memoryTokenRepo struct {
	mu      sync.Mutex
	records map[int64]domain.RefreshTokenRecord
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{records: make(map[int64]domain.RefreshTokenRecord)}
}

func (m *memoryTokenRepo) put(rec domain.RefreshTokenRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
}

func (m *memoryTokenRepo) expireAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
		m.records[id] = rec
	}
}

func (m *memoryTokenRepo) FindByUserID(ctx context.Context, userID int64) (domain.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return domain.RefreshTokenRecord{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (m *memoryTokenRepo) Upsert(ctx context.Context, record domain.RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.UserID] = record
	return nil
}

func (m *memoryTokenRepo) Rotate(ctx context.Context, userID int64, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok || rec.TokenHash != currentHash {
		return false, nil
	}
	rec.TokenHash = nextHash
	rec.ExpiresAt = expiresAt
	rec.UpdatedAt = time.Now()
	m.records[userID] = rec
	return true, nil
}

func (m *memoryTokenRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

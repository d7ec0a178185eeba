package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hyochang098/auth-template/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserByEmailSQL = `SELECT user_id, email, name, password_hash, role, created_at, updated_at
FROM users WHERE email = $1`

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRow(ctx, selectUserByEmailSQL, email)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

const selectUserByIDSQL = `SELECT user_id, email, name, password_hash, role, created_at, updated_at
FROM users WHERE user_id = $1`

func (r *PostgresUserRepo) FindByID(ctx context.Context, userID int64) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRow(ctx, selectUserByIDSQL, userID)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

const insertUserSQL = `INSERT INTO users (user_id, email, name, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING user_id, email, name, password_hash, role, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	var created domain.User
	row := r.db.QueryRow(ctx, insertUserSQL, user.ID, user.Email, user.Name, user.PasswordHash, user.Role)
	if err := row.Scan(&created.ID, &created.Email, &created.Name, &created.PasswordHash, &created.Role, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository on pgx. The
// refresh_tokens table has a unique constraint on user_id.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const selectRefreshTokenSQL = `SELECT refresh_token_id, user_id, token_hash, expires_at, created_at, updated_at
FROM refresh_tokens WHERE user_id = $1`

func (r *PostgresRefreshTokenRepo) FindByUserID(ctx context.Context, userID int64) (domain.RefreshTokenRecord, error) {
	var rec domain.RefreshTokenRecord
	row := r.db.QueryRow(ctx, selectRefreshTokenSQL, userID)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("get refresh token: %w", err)
	}
	return rec, nil
}

const upsertRefreshTokenSQL = `INSERT INTO refresh_tokens (refresh_token_id, user_id, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, updated_at = now()`

func (r *PostgresRefreshTokenRepo) Upsert(ctx context.Context, record domain.RefreshTokenRecord) error {
	if _, err := r.db.Exec(ctx, upsertRefreshTokenSQL, record.ID, record.UserID, record.TokenHash, record.ExpiresAt); err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

const rotateRefreshTokenSQL = `UPDATE refresh_tokens
SET token_hash = $3, expires_at = $4, updated_at = now()
WHERE user_id = $1 AND token_hash = $2`

func (r *PostgresRefreshTokenRepo) Rotate(ctx context.Context, userID int64, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, rotateRefreshTokenSQL, userID, currentHash, nextHash, expiresAt)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRefreshTokenRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

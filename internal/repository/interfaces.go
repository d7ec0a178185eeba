package repository

import (
	"context"
	"time"

	"github.com/Hyochang098/auth-template/internal/domain"
)

// UserRepository exposes persistence for user accounts. Lookups return
// pgx.ErrNoRows (wrapped) when no row matches.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, userID int64) (domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// RefreshTokenRepository owns the single durable refresh-token record per
// user. Rotate is the one atomicity boundary for concurrent refresh: it
// compares and swaps the stored hash in a single statement.
type RefreshTokenRepository interface {
	FindByUserID(ctx context.Context, userID int64) (domain.RefreshTokenRecord, error)

	// Upsert inserts the record or overwrites the existing row for the same
	// user in place.
	Upsert(ctx context.Context, record domain.RefreshTokenRecord) error

	// Rotate replaces currentHash with nextHash for the user. It returns
	// false when no row matched, meaning the record was already rotated,
	// deleted, or never existed.
	Rotate(ctx context.Context, userID int64, currentHash, nextHash string, expiresAt time.Time) (bool, error)

	// DeleteByUserID removes the user's record. Deleting a nonexistent
	// record is not an error.
	DeleteByUserID(ctx context.Context, userID int64) error
}

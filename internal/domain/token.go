package domain

import "time"

// RefreshTokenRecord is the durable refresh credential for a user. There is
// at most one live record per user; every successful login or refresh
// overwrites the hash and expiry in place.
type RefreshTokenRecord struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the record's expiry has passed.
func (r RefreshTokenRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

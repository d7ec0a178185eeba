package domain

import "time"

// Roles assigned to users. New sign-ups always start as GENERAL.
const (
	RoleGeneral = "GENERAL"
	RoleAdmin   = "ADMIN"
)

// User represents a registered account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

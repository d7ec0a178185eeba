package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/domain"
	"github.com/Hyochang098/auth-template/internal/repository"
)

// UserService exposes profile reads outside the session lifecycle.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// FindMe returns the caller's own account.
func (s *UserService) FindMe(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("profile lookup for unknown user", zap.Int64("user_id", userID))
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("load user profile: %w", err)
	}
	return user, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo repository.UserRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// Authenticate verifies credentials and returns the user without its password hash.
// Usernames match case-sensitively.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.UserSummary, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	// some collations compare case-insensitively
	if user.Username != username {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	summary := user.Summary()
	return &summary, nil
}

// GetUser returns the user by ID without its password hash.
func (s *AuthService) GetUser(ctx context.Context, userID uint64) (*models.UserSummary, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	summary := user.Summary()
	return &summary, nil
}

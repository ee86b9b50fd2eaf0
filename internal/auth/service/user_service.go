package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/S0uris666/Propsail/internal/auth/domain"
	"github.com/S0uris666/Propsail/internal/auth/dto"
	autherror "github.com/S0uris666/Propsail/internal/errors"
	"github.com/S0uris666/Propsail/internal/security"
)

type UserService struct {
	repo     domain.UserRepository
	security *security.Service
}

func NewUserService(repo domain.UserRepository, sec *security.Service) *UserService {
	return &UserService{
		repo:     repo,
		security: sec,
	}
}

// Register creates an active user. The password strength policy is enforced
// here, at creation time only; login never re-checks it.
func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*dto.UserOutput, error) {
	if err := s.security.CheckStrength(input.Password); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))

	for _, identifier := range []string{email, username} {
		existing, err := s.repo.GetByIdentifier(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, autherror.ErrEmailAlreadyInUse
		}
	}

	hashedPassword, err := s.security.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hashedPassword,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return &dto.UserOutput{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FullName:  user.FullName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}, nil
}

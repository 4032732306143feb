package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
}

// AuthService инкапсулирует аутентификацию.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает пользователя, членство и токены.
type AuthResult struct {
	User       *models.User       `json:"user"`
	Membership *models.Membership `json:"membership"`
	TokenPair  *TokenPair         `json:"tokens,omitempty"`
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
	}
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	errs := validation.Errors{}
	errs.Check("email", validation.ValidateEmail(in.Email))
	errs.Check("password", validation.ValidateNonEmpty("пароль", in.Password))
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	membership, err := s.activeMembership(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// Ошибка обновления last_login_at не прерывает вход
	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("auth service: не удалось обновить last_login_at")
	}

	tokenPair, _, _, err := s.tokenManager.GeneratePair(IdentityFromMembership(membership))
	if err != nil {
		return nil, fmt.Errorf("auth service: выпуск токенов: %w", err)
	}

	return &AuthResult{User: user, Membership: membership, TokenPair: tokenPair}, nil
}

// Refresh выпускает новую пару по refresh токену. Роль и организация читаются заново.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.ErrInvalidToken
	}

	membership, err := s.activeMembership(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokenPair, _, _, err := s.tokenManager.GeneratePair(IdentityFromMembership(membership))
	if err != nil {
		return nil, fmt.Errorf("auth service: выпуск токенов: %w", err)
	}
	return tokenPair, nil
}

// Me возвращает текущего пользователя с членством.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*AuthResult, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	membership, err := s.repo.GetMembership(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		return nil, err
	}
	return &AuthResult{User: user, Membership: membership}, nil
}

func (s *AuthService) activeMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	membership, err := s.repo.GetMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return nil, apperror.ErrAccountDisabled
		}
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if !membership.IsActive || membership.DisabledAt != nil {
		return nil, apperror.ErrAccountDisabled
	}
	return membership, nil
}

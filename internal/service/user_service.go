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
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// Массовые действия над пользователями.
const (
	BulkActivate   = "activate"
	BulkDeactivate = "deactivate"
	BulkDelete     = "delete"
)

// UserRepository описывает зависимости UserService от слоя хранилища.
type UserRepository interface {
	Create(ctx context.Context, user *models.User, membership *models.Membership) error
	Update(ctx context.Context, user *models.User, membership *models.Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleActive(ctx context.Context, userID uuid.UUID) (bool, error)
	SetActive(ctx context.Context, userIDs []uuid.UUID, active bool) (int64, error)
	DeleteMany(ctx context.Context, userIDs []uuid.UUID) (int64, error)
	Search(ctx context.Context, f models.MemberFilter) ([]models.MemberView, int, error)
}

// OrganizationLookup проверяет существование организации.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// UserService управляет пользователями и их членством в организациях.
type UserService struct {
	repo UserRepository
	orgs OrganizationLookup
}

// NewUserService создаёт сервис пользователей.
func NewUserService(repo UserRepository, orgs OrganizationLookup) *UserService {
	return &UserService{repo: repo, orgs: orgs}
}

// UserInput данные создания и редактирования пользователя.
type UserInput struct {
	FirstName string
	LastName  string
	Email     string
	// Password обязателен при создании; при обновлении пустой пароль не меняется.
	Password       string
	Phone          *string
	Address        *string
	Role           string
	OrganizationID *uuid.UUID
	IsMinistry     bool
	IsActive       *bool
}

// UserDetails пользователь вместе с членством.
type UserDetails struct {
	User       *models.User       `json:"user"`
	Membership *models.Membership `json:"membership"`
}

// List ищет пользователей по фильтру.
func (s *UserService) List(ctx context.Context, f models.MemberFilter) ([]models.MemberView, int, error) {
	if f.Status != "" && f.Status != "active" && f.Status != "inactive" && f.Status != "disabled" {
		return nil, 0, invalid(validation.Errors{"status": "статус должен быть active, inactive или disabled"})
	}
	return s.repo.Search(ctx, f)
}

// Get возвращает пользователя с членством.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*UserDetails, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	membership, err := s.repo.GetMembership(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		return nil, err
	}
	return &UserDetails{User: user, Membership: membership}, nil
}

// Create создаёт пользователя и членство в одной транзакции.
func (s *UserService) Create(ctx context.Context, in UserInput) (*UserDetails, error) {
	errs := s.validate(ctx, in, true)
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("user service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        validation.NilIfEmpty(in.Phone),
		Address:      validation.NilIfEmpty(in.Address),
		PasswordHash: string(hash),
	}
	membership := membershipFromInput(in)

	if err := s.repo.Create(ctx, user, membership); err != nil {
		return nil, translate(err)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    membership.Role,
	}).Info("пользователь создан")

	return &UserDetails{User: user, Membership: membership}, nil
}

// Update перезаписывает профиль и членство пользователя.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UserInput) (*UserDetails, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	errs := s.validate(ctx, in, false)
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.Email = strings.ToLower(strings.TrimSpace(in.Email))
	user.Phone = validation.NilIfEmpty(in.Phone)
	user.Address = validation.NilIfEmpty(in.Address)
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("user service: не удалось захешировать пароль: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	membership := membershipFromInput(in)
	membership.UserID = id
	if in.IsActive == nil {
		if current, err := s.repo.GetMembership(ctx, id); err == nil {
			membership.IsActive = current.IsActive
		}
	}

	if err := s.repo.Update(ctx, user, membership); err != nil {
		return nil, translate(err)
	}
	return &UserDetails{User: user, Membership: membership}, nil
}

// Delete удаляет пользователя. Удалить самого себя нельзя.
func (s *UserService) Delete(ctx context.Context, actor Identity, id uuid.UUID) error {
	if actor.UserID == id {
		return invalid(validation.Errors{"id": "нельзя удалить собственную учётную запись"})
	}
	return translate(s.repo.Delete(ctx, id))
}

// ToggleActive переключает активность членства и возвращает новое значение.
func (s *UserService) ToggleActive(ctx context.Context, actor Identity, id uuid.UUID) (bool, error) {
	if actor.UserID == id {
		return false, invalid(validation.Errors{"id": "нельзя деактивировать собственную учётную запись"})
	}
	active, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		return false, translate(err)
	}
	return active, nil
}

// Bulk выполняет массовое действие; собственная учётная запись пропускается.
func (s *UserService) Bulk(ctx context.Context, actor Identity, action string, ids []uuid.UUID) (int64, error) {
	targets := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == actor.UserID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return 0, invalid(validation.Errors{"user_ids": "не выбрано ни одного пользователя"})
	}

	switch action {
	case BulkActivate:
		return s.repo.SetActive(ctx, targets, true)
	case BulkDeactivate:
		return s.repo.SetActive(ctx, targets, false)
	case BulkDelete:
		n, err := s.repo.DeleteMany(ctx, targets)
		return n, translate(err)
	default:
		return 0, invalid(validation.Errors{"action": "действие должно быть activate, deactivate или delete"})
	}
}

func (s *UserService) validate(ctx context.Context, in UserInput, creating bool) validation.Errors {
	errs := validation.Errors{}
	errs.Check("first_name", validation.ValidateNonEmpty("имя", in.FirstName))
	errs.Check("first_name", validation.ValidateLength("имя", in.FirstName, 0, validation.MaxNameLength))
	errs.Check("last_name", validation.ValidateNonEmpty("фамилия", in.LastName))
	errs.Check("last_name", validation.ValidateLength("фамилия", in.LastName, 0, validation.MaxNameLength))
	errs.Check("email", validation.ValidateEmail(in.Email))
	if creating || in.Password != "" {
		errs.Check("password", validation.ValidatePassword(in.Password))
	}
	if in.Phone != nil {
		errs.Check("phone", validation.ValidateLength("телефон", *in.Phone, 0, validation.MaxPhoneLength))
	}
	if in.Address != nil {
		errs.Check("address", validation.ValidateLength("адрес", *in.Address, 0, validation.MaxAddressLength))
	}
	errs.Check("role", validation.ValidateOneOf("роль", in.Role, models.ValidRoles))

	if in.Role != models.RoleAdmin {
		if in.OrganizationID == nil {
			errs.Add("organization_id", "организация обязательна для этой роли")
		} else if _, err := s.orgs.GetByID(ctx, *in.OrganizationID); err != nil {
			if errors.Is(err, repository.ErrOrganizationNotFound) {
				errs.Add("organization_id", "организация не найдена")
			} else {
				errs.Add("organization_id", "не удалось проверить организацию")
				logger.FromContext(ctx).WithError(err).Error("user service: проверка организации")
			}
		}
	}
	return errs
}

func membershipFromInput(in UserInput) *models.Membership {
	m := &models.Membership{
		Role:       in.Role,
		IsMinistry: in.IsMinistry,
		IsActive:   true,
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if in.Role != models.RoleAdmin {
		m.OrganizationID = in.OrganizationID
	}
	return m
}

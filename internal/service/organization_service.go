package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// OrganizationPageSize размер страницы списка организаций.
const OrganizationPageSize = 15

// OrganizationRepository описывает зависимости OrganizationService.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, limit, offset int) ([]models.Organization, int, error)
}

// OrganizationService управляет справочником организаций.
type OrganizationService struct {
	repo OrganizationRepository
}

// NewOrganizationService создаёт сервис организаций.
func NewOrganizationService(repo OrganizationRepository) *OrganizationService {
	return &OrganizationService{repo: repo}
}

// OrganizationInput поля организации.
type OrganizationInput struct {
	Name          string
	Industry      string
	ContactPerson string
	ContactEmail  string
}

func (in OrganizationInput) validate() validation.Errors {
	errs := validation.Errors{}
	errs.Check("name", validation.ValidateNonEmpty("название", in.Name))
	errs.Check("name", validation.ValidateLength("название", in.Name, 0, validation.MaxNameLength))
	errs.Check("industry", validation.ValidateNonEmpty("отрасль", in.Industry))
	errs.Check("industry", validation.ValidateLength("отрасль", in.Industry, 0, validation.MaxNameLength))
	errs.Check("contact_person", validation.ValidateNonEmpty("контактное лицо", in.ContactPerson))
	errs.Check("contact_person", validation.ValidateLength("контактное лицо", in.ContactPerson, 0, validation.MaxNameLength))
	errs.Check("contact_email", validation.ValidateEmail(in.ContactEmail))
	return errs
}

func (in OrganizationInput) apply(org *models.Organization) {
	org.Name = strings.TrimSpace(in.Name)
	org.Industry = strings.TrimSpace(in.Industry)
	org.ContactPerson = strings.TrimSpace(in.ContactPerson)
	org.ContactEmail = strings.ToLower(strings.TrimSpace(in.ContactEmail))
}

// List возвращает страницу организаций.
func (s *OrganizationService) List(ctx context.Context, limit, offset int) ([]models.Organization, int, error) {
	if limit <= 0 {
		limit = OrganizationPageSize
	}
	return s.repo.List(ctx, limit, offset)
}

// Get возвращает организацию.
func (s *OrganizationService) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return org, nil
}

// Create создаёт организацию.
func (s *OrganizationService) Create(ctx context.Context, in OrganizationInput) (*models.Organization, error) {
	if errs := in.validate(); !errs.Empty() {
		return nil, invalid(errs)
	}
	org := &models.Organization{}
	in.apply(org)
	if err := s.repo.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Update изменяет организацию.
func (s *OrganizationService) Update(ctx context.Context, id uuid.UUID, in OrganizationInput) (*models.Organization, error) {
	if errs := in.validate(); !errs.Empty() {
		return nil, invalid(errs)
	}
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	in.apply(org)
	if err := s.repo.Update(ctx, org); err != nil {
		return nil, translate(err)
	}
	return org, nil
}

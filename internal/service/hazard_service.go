package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// CompliancePageSize размер страницы списков опасностей и планов.
const CompliancePageSize = 20

// HazardRepository описывает хранилище опасностей.
type HazardRepository interface {
	Create(ctx context.Context, h *models.Hazard) error
	Update(ctx context.Context, h *models.Hazard) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Hazard, error)
	List(ctx context.Context, organizationID *uuid.UUID, status string, limit, offset int) ([]models.Hazard, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// HazardService реестр опасностей организации.
type HazardService struct {
	repo HazardRepository
	orgs OrganizationLookup
}

// NewHazardService создаёт сервис.
func NewHazardService(repo HazardRepository, orgs OrganizationLookup) *HazardService {
	return &HazardService{repo: repo, orgs: orgs}
}

// HazardInput поля опасности.
type HazardInput struct {
	OrganizationID *uuid.UUID
	Description    string
	RiskLevel      string
	MitigationPlan *string
	Status         string
}

// resolveOrganization организация записи: для не-администратора всегда своя.
func resolveOrganization(ctx context.Context, orgs OrganizationLookup, actor Identity, requested *uuid.UUID, errs validation.Errors) (uuid.UUID, error) {
	orgID := requested
	if !actor.IsAdmin() {
		orgID = actor.OrganizationID
	}
	if orgID == nil {
		errs.Add("organization_id", "организация обязательна")
		return uuid.Nil, nil
	}
	if _, err := orgs.GetByID(ctx, *orgID); err != nil {
		if apperror.IsNotFound(translate(err)) {
			errs.Add("organization_id", "организация не найдена")
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return *orgID, nil
}

func (s *HazardService) validate(ctx context.Context, actor Identity, in *HazardInput) (uuid.UUID, error) {
	errs := validation.Errors{}
	in.Description = strings.TrimSpace(in.Description)
	errs.Check("description", validation.ValidateNonEmpty("описание", in.Description))
	errs.Check("risk_level", validation.ValidateOneOf("уровень риска", in.RiskLevel, models.ValidSeverities))
	if in.Status == "" {
		in.Status = models.HazardOpen
	}
	errs.Check("status", validation.ValidateOneOf("статус", in.Status, models.ValidHazardStatuses))

	orgID, err := resolveOrganization(ctx, s.orgs, actor, in.OrganizationID, errs)
	if err != nil {
		return uuid.Nil, err
	}
	if !errs.Empty() {
		return uuid.Nil, invalid(errs)
	}
	return orgID, nil
}

func (s *HazardService) load(ctx context.Context, actor Identity, id uuid.UUID) (*models.Hazard, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	orgID := h.OrganizationID
	if !actor.CanAccessOrganization(&orgID) {
		return nil, apperror.ErrHazardNotFound
	}
	return h, nil
}

// List опасности организации пользователя; администратор видит все.
func (s *HazardService) List(ctx context.Context, actor Identity, status string, limit, offset int) ([]models.Hazard, int, error) {
	if status != "" {
		if err := validation.ValidateOneOf("статус", status, models.ValidHazardStatuses); err != nil {
			return nil, 0, invalid(validation.Errors{"status": err.Error()})
		}
	}
	if limit <= 0 {
		limit = CompliancePageSize
	}
	scope := actor.OrganizationScope()
	if !actor.IsAdmin() && scope == nil {
		return []models.Hazard{}, 0, nil
	}
	return s.repo.List(ctx, scope, status, limit, offset)
}

// Get возвращает опасность.
func (s *HazardService) Get(ctx context.Context, actor Identity, id uuid.UUID) (*models.Hazard, error) {
	return s.load(ctx, actor, id)
}

// Create регистрирует опасность.
func (s *HazardService) Create(ctx context.Context, actor Identity, in HazardInput) (*models.Hazard, error) {
	orgID, err := s.validate(ctx, actor, &in)
	if err != nil {
		return nil, err
	}
	h := &models.Hazard{
		OrganizationID: orgID,
		Description:    in.Description,
		RiskLevel:      in.RiskLevel,
		MitigationPlan: validation.NilIfEmpty(in.MitigationPlan),
		Status:         in.Status,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Update изменяет опасность.
func (s *HazardService) Update(ctx context.Context, actor Identity, id uuid.UUID, in HazardInput) (*models.Hazard, error) {
	h, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.OrganizationID == nil {
		current := h.OrganizationID
		in.OrganizationID = &current
	}
	orgID, err := s.validate(ctx, actor, &in)
	if err != nil {
		return nil, err
	}
	h.OrganizationID = orgID
	h.Description = in.Description
	h.RiskLevel = in.RiskLevel
	h.MitigationPlan = validation.NilIfEmpty(in.MitigationPlan)
	h.Status = in.Status
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, translate(err)
	}
	return h, nil
}

// Delete удаляет опасность.
func (s *HazardService) Delete(ctx context.Context, actor Identity, id uuid.UUID) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	return translate(s.repo.Delete(ctx, id))
}

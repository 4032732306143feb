package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// PlanRepository описывает хранилище планов реагирования.
type PlanRepository interface {
	Create(ctx context.Context, p *models.EmergencyPlan) error
	Update(ctx context.Context, p *models.EmergencyPlan) error
	MarkReviewed(ctx context.Context, id uuid.UUID, at time.Time) (*models.EmergencyPlan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmergencyPlan, error)
	List(ctx context.Context, organizationID *uuid.UUID, limit, offset int) ([]models.EmergencyPlan, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlanService планы реагирования на чрезвычайные ситуации.
type PlanService struct {
	repo PlanRepository
	orgs OrganizationLookup
	now  func() time.Time
}

// NewPlanService создаёт сервис.
func NewPlanService(repo PlanRepository, orgs OrganizationLookup) *PlanService {
	return &PlanService{repo: repo, orgs: orgs, now: time.Now}
}

// PlanInput поля плана.
type PlanInput struct {
	OrganizationID *uuid.UUID
	PlanName       string
	DocumentURL    *string
}

func (s *PlanService) validate(ctx context.Context, actor Identity, in *PlanInput) (uuid.UUID, error) {
	errs := validation.Errors{}
	in.PlanName = strings.TrimSpace(in.PlanName)
	errs.Check("plan_name", validation.ValidateNonEmpty("название плана", in.PlanName))
	errs.Check("plan_name", validation.ValidateLength("название плана", in.PlanName, 0, validation.MaxNameLength))

	in.DocumentURL = validation.NilIfEmpty(in.DocumentURL)
	if in.DocumentURL != nil {
		if u, err := url.ParseRequestURI(*in.DocumentURL); err != nil || u.Host == "" {
			errs.Add("document_url", "некорректная ссылка на документ")
		}
	}

	orgID, err := resolveOrganization(ctx, s.orgs, actor, in.OrganizationID, errs)
	if err != nil {
		return uuid.Nil, err
	}
	if !errs.Empty() {
		return uuid.Nil, invalid(errs)
	}
	return orgID, nil
}

func (s *PlanService) load(ctx context.Context, actor Identity, id uuid.UUID) (*models.EmergencyPlan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	orgID := p.OrganizationID
	if !actor.CanAccessOrganization(&orgID) {
		return nil, apperror.ErrPlanNotFound
	}
	return p, nil
}

// List планы организации пользователя.
func (s *PlanService) List(ctx context.Context, actor Identity, limit, offset int) ([]models.EmergencyPlan, int, error) {
	if limit <= 0 {
		limit = CompliancePageSize
	}
	scope := actor.OrganizationScope()
	if !actor.IsAdmin() && scope == nil {
		return []models.EmergencyPlan{}, 0, nil
	}
	return s.repo.List(ctx, scope, limit, offset)
}

// Get возвращает план.
func (s *PlanService) Get(ctx context.Context, actor Identity, id uuid.UUID) (*models.EmergencyPlan, error) {
	return s.load(ctx, actor, id)
}

// Create добавляет план.
func (s *PlanService) Create(ctx context.Context, actor Identity, in PlanInput) (*models.EmergencyPlan, error) {
	orgID, err := s.validate(ctx, actor, &in)
	if err != nil {
		return nil, err
	}
	p := &models.EmergencyPlan{OrganizationID: orgID, PlanName: in.PlanName, DocumentURL: in.DocumentURL}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update изменяет план.
func (s *PlanService) Update(ctx context.Context, actor Identity, id uuid.UUID, in PlanInput) (*models.EmergencyPlan, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.OrganizationID == nil {
		current := p.OrganizationID
		in.OrganizationID = &current
	}
	orgID, err := s.validate(ctx, actor, &in)
	if err != nil {
		return nil, err
	}
	p.OrganizationID = orgID
	p.PlanName = in.PlanName
	p.DocumentURL = in.DocumentURL
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// MarkReviewed отмечает, что план пересмотрен сейчас.
func (s *PlanService) MarkReviewed(ctx context.Context, actor Identity, id uuid.UUID) (*models.EmergencyPlan, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	p, err := s.repo.MarkReviewed(ctx, id, s.now())
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// Delete удаляет план.
func (s *PlanService) Delete(ctx context.Context, actor Identity, id uuid.UUID) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	return translate(s.repo.Delete(ctx, id))
}

package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// Массовые действия над курсами.
const (
	TrainingBulkDelete         = "delete"
	TrainingBulkUpdateIndustry = "update_industry"

	// TrainingPageSize размер страницы каталога курсов.
	TrainingPageSize = 15

	trainingStatsTTL = 5 * time.Minute
)

// TrainingRepository описывает хранилище курсов и записей.
type TrainingRepository interface {
	Create(ctx context.Context, t *models.Training) error
	Update(ctx context.Context, t *models.Training) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Training, error)
	List(ctx context.Context, search, industry string, limit, offset int) ([]models.Training, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	UpdateIndustry(ctx context.Context, ids []uuid.UUID, industry string) (int64, error)
	EnrollmentStats(ctx context.Context, trainingID uuid.UUID) (*models.EnrollmentStats, error)
	EnrollmentsByOrganization(ctx context.Context, trainingID uuid.UUID) ([]models.OrganizationEnrollment, error)
	Statistics(ctx context.Context) (*models.TrainingStatistics, error)
	Enroll(ctx context.Context, e *models.Enrollment) error
	Unenroll(ctx context.Context, trainingID, userID uuid.UUID) error
	UpdateEnrollmentStatus(ctx context.Context, trainingID, userID uuid.UUID, status string, completedAt *time.Time) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, trainingID uuid.UUID) ([]models.Enrollment, error)
}

// MembershipLookup возвращает членство пользователя.
type MembershipLookup interface {
	GetMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
}

// TrainingService каталог курсов по охране труда и записи на них.
type TrainingService struct {
	repo    TrainingRepository
	members MembershipLookup
	cache   *CacheService
	now     func() time.Time
}

// NewTrainingService создаёт сервис.
func NewTrainingService(repo TrainingRepository, members MembershipLookup, cache *CacheService) *TrainingService {
	if cache == nil {
		cache = NewCacheService()
	}
	return &TrainingService{repo: repo, members: members, cache: cache, now: time.Now}
}

// TrainingInput поля курса.
type TrainingInput struct {
	Name        string
	Description *string
	Industry    *string
}

// EnrollmentView запись на курс с процентом прохождения.
type EnrollmentView struct {
	models.Enrollment
	Progress int `json:"progress"`
}

// TrainingDetails курс со статистикой записей.
type TrainingDetails struct {
	*models.Training
	Stats          *models.EnrollmentStats         `json:"enrollment_stats"`
	ByOrganization []models.OrganizationEnrollment `json:"enrollments_by_organization"`
	Enrollments    []EnrollmentView                `json:"enrollments"`
}

func (in *TrainingInput) validate() validation.Errors {
	errs := validation.Errors{}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = validation.NilIfEmpty(in.Description)
	in.Industry = validation.NilIfEmpty(in.Industry)
	errs.Check("name", validation.ValidateNonEmpty("название", in.Name))
	errs.Check("name", validation.ValidateLength("название", in.Name, 0, validation.MaxNameLength))
	if in.Industry != nil {
		errs.Check("industry", validation.ValidateLength("отрасль", *in.Industry, 0, validation.MaxNameLength))
	}
	return errs
}

func newEnrollmentView(e models.Enrollment) EnrollmentView {
	return EnrollmentView{Enrollment: e, Progress: e.Progress()}
}

// completionRate доля завершивших в процентах, два знака после запятой.
func completionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

func (s *TrainingService) invalidateStats() {
	s.cache.InvalidateByPrefix(trainingStatsPrefix)
}

// List каталог курсов с поиском и фильтром по отрасли.
func (s *TrainingService) List(ctx context.Context, search, industry string, limit, offset int) ([]models.Training, int, error) {
	if limit <= 0 {
		limit = TrainingPageSize
	}
	return s.repo.List(ctx, strings.TrimSpace(search), strings.TrimSpace(industry), limit, offset)
}

// Get курс со статистикой записей по статусам и организациям.
func (s *TrainingService) Get(ctx context.Context, id uuid.UUID) (*TrainingDetails, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	stats, err := s.repo.EnrollmentStats(ctx, id)
	if err != nil {
		return nil, err
	}
	stats.CompletionRate = completionRate(stats.Completed, stats.TotalEnrolled)

	byOrg, err := s.repo.EnrollmentsByOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListEnrollments(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]EnrollmentView, 0, len(enrollments))
	for _, e := range enrollments {
		views = append(views, newEnrollmentView(e))
	}
	return &TrainingDetails{Training: t, Stats: stats, ByOrganization: byOrg, Enrollments: views}, nil
}

// Create добавляет курс; название уникально.
func (s *TrainingService) Create(ctx context.Context, in TrainingInput) (*models.Training, error) {
	if errs := in.validate(); !errs.Empty() {
		return nil, invalid(errs)
	}
	t := &models.Training{Name: in.Name, Description: in.Description, Industry: in.Industry}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, translate(err)
	}
	s.invalidateStats()
	return t, nil
}

// Update изменяет курс.
func (s *TrainingService) Update(ctx context.Context, id uuid.UUID, in TrainingInput) (*models.Training, error) {
	if errs := in.validate(); !errs.Empty() {
		return nil, invalid(errs)
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	t.Name, t.Description, t.Industry = in.Name, in.Description, in.Industry
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, translate(err)
	}
	s.invalidateStats()
	return t, nil
}

// Delete удаляет курс, если на него никто не записан.
func (s *TrainingService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err)
	}
	s.invalidateStats()
	return nil
}

// Bulk массовое удаление или смена отрасли. Курсы с записями при удалении пропускаются.
func (s *TrainingService) Bulk(ctx context.Context, action string, ids []uuid.UUID, industry string) (int64, error) {
	ids = dedupe(ids)
	errs := validation.Errors{}
	if len(ids) == 0 {
		errs.Add("ids", "нужно выбрать хотя бы один курс")
	}
	industry = strings.TrimSpace(industry)
	switch action {
	case TrainingBulkDelete:
	case TrainingBulkUpdateIndustry:
		errs.Check("industry", validation.ValidateNonEmpty("отрасль", industry))
		errs.Check("industry", validation.ValidateLength("отрасль", industry, 0, validation.MaxNameLength))
	default:
		errs.Add("action", "действие должно быть delete или update_industry")
	}
	if !errs.Empty() {
		return 0, invalid(errs)
	}

	var (
		n   int64
		err error
	)
	if action == TrainingBulkDelete {
		n, err = s.repo.DeleteMany(ctx, ids)
	} else {
		n, err = s.repo.UpdateIndustry(ctx, ids, industry)
	}
	if err != nil {
		return 0, err
	}
	s.invalidateStats()

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"action":   action,
		"affected": n,
	}).Info("массовое действие над курсами")
	return n, nil
}

// Statistics общая статистика по обучению; кэшируется.
func (s *TrainingService) Statistics(ctx context.Context) (*models.TrainingStatistics, error) {
	value, err := s.cache.GetOrSet(trainingStatsPrefix, trainingStatsTTL, func() (interface{}, error) {
		return s.repo.Statistics(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.TrainingStatistics), nil
}

// Enroll записывает пользователя на курс от имени его организации.
func (s *TrainingService) Enroll(ctx context.Context, trainingID, userID uuid.UUID) (*EnrollmentView, error) {
	if _, err := s.repo.GetByID(ctx, trainingID); err != nil {
		return nil, translate(err)
	}
	membership, err := s.members.GetMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return nil, invalid(validation.Errors{"user_id": "пользователь не найден"})
		}
		return nil, err
	}

	e := &models.Enrollment{
		UserID:         userID,
		OrganizationID: membership.OrganizationID,
		TrainingID:     trainingID,
		Status:         models.TrainingPending,
	}
	if err := s.repo.Enroll(ctx, e); err != nil {
		return nil, translate(err)
	}
	s.invalidateStats()
	view := newEnrollmentView(*e)
	return &view, nil
}

// Unenroll отменяет запись.
func (s *TrainingService) Unenroll(ctx context.Context, trainingID, userID uuid.UUID) error {
	if err := s.repo.Unenroll(ctx, trainingID, userID); err != nil {
		return translate(err)
	}
	s.invalidateStats()
	return nil
}

// UpdateEnrollmentStatus меняет статус прохождения. Дата завершения ставится
// только для Completed и очищается для остальных статусов.
func (s *TrainingService) UpdateEnrollmentStatus(ctx context.Context, trainingID, userID uuid.UUID, status string) (*EnrollmentView, error) {
	if err := validation.ValidateOneOf("статус", status, models.ValidTrainingStatuses); err != nil {
		return nil, invalid(validation.Errors{"status": err.Error()})
	}
	var completedAt *time.Time
	if status == models.TrainingCompleted {
		now := s.now()
		completedAt = &now
	}
	e, err := s.repo.UpdateEnrollmentStatus(ctx, trainingID, userID, status, completedAt)
	if err != nil {
		return nil, translate(err)
	}
	s.invalidateStats()
	view := newEnrollmentView(*e)
	return &view, nil
}

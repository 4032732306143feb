package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/attachment"
	"github.com/ignatzorin/hsse-backend/internal/export"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/storage"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

const (
	// ReportPageSize размер страницы реестра отчётов.
	ReportPageSize = 20

	reportStatsTTL = time.Minute
)

// knownReportStatuses статусы, которые можно выставить при обработке отчёта.
var knownReportStatuses = map[string]struct{}{
	models.ReportStatusPending:     {},
	models.ReportStatusInProgress:  {},
	models.ReportStatusUnderReview: {},
	models.ReportStatusResolved:    {},
	models.ReportStatusCompleted:   {},
	models.ReportStatusClosed:      {},
}

// ReportRepository описывает зависимости ReportService от таблицы reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Update(ctx context.Context, report *models.Report) error
	UpdateStatus(ctx context.Context, report *models.Report, markRequired bool) error
	MarkEscalationRequired(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f models.ReportFilter) ([]models.Report, int, error)
	Stats(ctx context.Context, organizationID *uuid.UUID) (*models.ReportStats, error)
}

// EscalationLister отдаёт эскалации отчёта.
type EscalationLister interface {
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ReportEscalation, error)
}

// UserLookup ищет пользователя по идентификатору.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// StatusNotifier сообщает внешнему каналу о смене статуса отчёта.
type StatusNotifier interface {
	NotifyStatusChange(report *models.Report, assignedToName *string)
}

// ReportService реестр отчётов: приём, обработка, вложения, выгрузка.
type ReportService struct {
	reports     ReportRepository
	escalations EscalationLister
	users       UserLookup
	orgs        OrganizationLookup
	notifier    StatusNotifier
	cache       *CacheService
	files       *attachmentStore
	urlTTL      time.Duration
	now         func() time.Time
}

// NewReportService создаёт сервис отчётов.
func NewReportService(
	reports ReportRepository,
	uploads UploadRepository,
	escalations EscalationLister,
	users UserLookup,
	orgs OrganizationLookup,
	blobs storage.BlobStore,
	notifier StatusNotifier,
	cache *CacheService,
	signedURLTTL time.Duration,
) *ReportService {
	if cache == nil {
		cache = NewCacheService()
	}
	return &ReportService{
		reports:     reports,
		escalations: escalations,
		users:       users,
		orgs:        orgs,
		notifier:    notifier,
		cache:       cache,
		files:       &attachmentStore{uploads: uploads, blobs: blobs, now: time.Now},
		urlTTL:      signedURLTTL,
		now:         time.Now,
	}
}

// ReportView отчёт с цветами бейджей для интерфейса.
type ReportView struct {
	models.Report
	StatusColor   string `json:"status_color"`
	SeverityColor string `json:"severity_color"`
}

func newReportView(r models.Report) ReportView {
	return ReportView{Report: r, StatusColor: r.StatusColor(), SeverityColor: r.SeverityColor()}
}

// ReportDetails отчёт вместе с вложениями и эскалациями.
type ReportDetails struct {
	ReportView
	Uploads     []models.ReportUpload     `json:"uploads"`
	Escalations []models.ReportEscalation `json:"escalations"`
}

// CreateResult созданный отчёт и итог загрузки вложений.
type CreateResult struct {
	Report      *models.Report   `json:"report"`
	Attachments AttachmentResult `json:"attachments"`
}

// ReportInput поля отчёта из панели управления.
type ReportInput struct {
	OrganizationID        *uuid.UUID
	ReportedByUserID      *uuid.UUID
	ReportType            string
	IncidentType          *string
	Description           string
	DateOfIncident        string
	LocationLat           *float64
	LocationLong          *float64
	Severity              *string
	Industry              *string
	ReporterName          *string
	ReporterContact       *string
	Status                string
	AssignedTo            *uuid.UUID
	CauseOfDeath          *string
	RegulationClassBroken *string
	FeedbackGiven         *bool
}

// PublicReportInput поля анонимной формы.
type PublicReportInput struct {
	ReportType            string
	IncidentType          *string
	Description           string
	DateOfIncident        string
	LocationLat           *float64
	LocationLong          *float64
	Severity              *string
	Industry              *string
	ReporterName          *string
	ReporterContact       *string
	CauseOfDeath          *string
	RegulationClassBroken *string
}

// StatusInput изменение статуса при обработке отчёта.
type StatusInput struct {
	Status             string
	AssignedTo         *uuid.UUID
	EscalationRequired bool
	FeedbackGiven      *bool
}

func checkOptionalLength(errs validation.Errors, field, label string, v *string) {
	if v != nil {
		errs.Check(field, validation.ValidateLength(label, *v, 0, validation.MaxReportTypeLength))
	}
}

func checkSeverity(errs validation.Errors, severity *string) {
	if severity != nil && strings.TrimSpace(*severity) != "" {
		errs.Check("severity", validation.ValidateOneOf("тяжесть", strings.TrimSpace(*severity), models.ValidSeverities))
	}
}

func (in ReportInput) validate() (validation.Errors, time.Time) {
	errs := validation.Errors{}
	if in.OrganizationID == nil {
		errs.Add("organization_id", "организация обязательна")
	}
	if in.ReportedByUserID == nil {
		errs.Add("reported_by_user_id", "автор отчёта обязателен")
	}
	errs.Check("report_type", validation.ValidateNonEmpty("тип отчёта", in.ReportType))
	errs.Check("report_type", validation.ValidateLength("тип отчёта", in.ReportType, 0, validation.MaxReportTypeLength))
	errs.Check("description", validation.ValidateNonEmpty("описание", in.Description))
	errs.Check("status", validation.ValidateNonEmpty("статус", in.Status))
	errs.Check("status", validation.ValidateLength("статус", in.Status, 0, validation.MaxReportTypeLength))

	var date time.Time
	if strings.TrimSpace(in.DateOfIncident) == "" {
		errs.Add("date_of_incident", "дата инцидента обязательна")
	} else if d, err := validation.ParseDate(in.DateOfIncident); err != nil {
		errs.Check("date_of_incident", err)
	} else {
		date = d
	}

	checkSeverity(errs, in.Severity)
	errs.Check("location_lat", validation.ValidateLatitude(in.LocationLat))
	errs.Check("location_long", validation.ValidateLongitude(in.LocationLong))
	checkOptionalLength(errs, "incident_type", "тип инцидента", in.IncidentType)
	checkOptionalLength(errs, "industry", "отрасль", in.Industry)
	checkOptionalLength(errs, "reporter_name", "имя заявителя", in.ReporterName)
	checkOptionalLength(errs, "reporter_contact", "контакт заявителя", in.ReporterContact)
	checkOptionalLength(errs, "cause_of_death", "причина смерти", in.CauseOfDeath)
	checkOptionalLength(errs, "regulation_class_broken", "нарушенный регламент", in.RegulationClassBroken)
	return errs, date
}

func (in ReportInput) apply(r *models.Report, date time.Time) {
	r.OrganizationID = in.OrganizationID
	r.ReportType = strings.TrimSpace(in.ReportType)
	r.IncidentType = validation.NilIfEmpty(in.IncidentType)
	r.Description = strings.TrimSpace(in.Description)
	r.DateOfIncident = date
	r.LocationLat = in.LocationLat
	r.LocationLong = in.LocationLong
	r.Severity = validation.NilIfEmpty(in.Severity)
	r.Industry = validation.NilIfEmpty(in.Industry)
	r.ReporterName = validation.NilIfEmpty(in.ReporterName)
	r.ReporterContact = validation.NilIfEmpty(in.ReporterContact)
	r.Status = strings.TrimSpace(in.Status)
	r.AssignedTo = in.AssignedTo
	r.CauseOfDeath = validation.NilIfEmpty(in.CauseOfDeath)
	r.RegulationClassBroken = validation.NilIfEmpty(in.RegulationClassBroken)
	if in.FeedbackGiven != nil {
		r.FeedbackGiven = *in.FeedbackGiven
	}
}

func (in PublicReportInput) validate(now time.Time) (validation.Errors, time.Time) {
	errs := validation.Errors{}
	errs.Check("report_type", validation.ValidateOneOf("тип отчёта", in.ReportType, models.PublicReportTypes))

	description := strings.TrimSpace(in.Description)
	errs.Check("description", validation.ValidateNonEmpty("описание", description))
	errs.Check("description", validation.ValidateLength("описание", description,
		validation.MinPublicDescriptionLength, validation.MaxPublicDescriptionLength))

	var date time.Time
	if strings.TrimSpace(in.DateOfIncident) == "" {
		errs.Add("date_of_incident", "дата инцидента обязательна")
	} else if d, err := validation.ParseDate(in.DateOfIncident); err != nil {
		errs.Check("date_of_incident", err)
	} else if err := validation.ValidateIncidentDate(d, now); err != nil {
		errs.Check("date_of_incident", err)
	} else {
		date = d
	}

	checkSeverity(errs, in.Severity)
	errs.Check("location_lat", validation.ValidateLatitude(in.LocationLat))
	errs.Check("location_long", validation.ValidateLongitude(in.LocationLong))
	if in.ReporterName != nil {
		errs.Check("reporter_name", validation.ValidateReporterName(strings.TrimSpace(*in.ReporterName)))
	}
	checkOptionalLength(errs, "incident_type", "тип инцидента", in.IncidentType)
	checkOptionalLength(errs, "industry", "отрасль", in.Industry)
	checkOptionalLength(errs, "reporter_contact", "контакт заявителя", in.ReporterContact)
	checkOptionalLength(errs, "cause_of_death", "причина смерти", in.CauseOfDeath)
	checkOptionalLength(errs, "regulation_class_broken", "нарушенный регламент", in.RegulationClassBroken)
	return errs, date
}

// checkReferences проверяет, что организация, автор и исполнитель существуют.
func (s *ReportService) checkReferences(ctx context.Context, errs validation.Errors, orgID, reporterID, assigneeID *uuid.UUID) error {
	if orgID != nil {
		if _, err := s.orgs.GetByID(ctx, *orgID); err != nil {
			if !errors.Is(err, repository.ErrOrganizationNotFound) {
				return err
			}
			errs.Add("organization_id", "организация не найдена")
		}
	}
	refs := []struct {
		field string
		id    *uuid.UUID
	}{
		{"reported_by_user_id", reporterID},
		{"assigned_to", assigneeID},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		if _, err := s.users.GetByID(ctx, *ref.id); err != nil {
			if !errors.Is(err, repository.ErrUserNotFound) {
				return err
			}
			errs.Add(ref.field, "пользователь не найден")
		}
	}
	return nil
}

// load возвращает отчёт, если он доступен пользователю.
func (s *ReportService) load(ctx context.Context, actor Identity, id uuid.UUID) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !actor.CanAccessOrganization(report.OrganizationID) {
		return nil, apperror.ErrForbidden
	}
	return report, nil
}

// Create создаёт отчёт из панели управления и загружает вложения.
// Пользователь без роли администратора создаёт отчёты только в своей организации.
func (s *ReportService) Create(ctx context.Context, actor Identity, in ReportInput, files []FileInput) (*CreateResult, error) {
	if !actor.IsAdmin() {
		in.OrganizationID = actor.OrganizationID
	}
	if in.ReportedByUserID == nil {
		id := actor.UserID
		in.ReportedByUserID = &id
	}

	errs, date := in.validate()
	if err := s.checkReferences(ctx, errs, in.OrganizationID, in.ReportedByUserID, in.AssignedTo); err != nil {
		return nil, err
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	report := &models.Report{
		ReportedByUserID: in.ReportedByUserID,
		Source:           models.ReportSourceAdmin,
	}
	in.apply(report, date)

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	s.cache.InvalidateReportStats()

	uploadedBy := actor.UserID.String()
	result := s.files.store(ctx, report.ID, files, attachment.AdminPolicy, adminKey, &uploadedBy)

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"report_id": report.ID,
		"uploaded":  len(result.Uploaded),
		"failed":    len(result.Failed),
	}).Info("отчёт создан")

	return &CreateResult{Report: report, Attachments: result}, nil
}

// CreatePublic принимает анонимный отчёт. Все проверки выполняются до записи.
func (s *ReportService) CreatePublic(ctx context.Context, in PublicReportInput, files []FileInput, clientIP string) (*CreateResult, error) {
	errs, date := in.validate(s.now())
	if err := attachment.PublicPolicy.CheckCount(len(files)); err != nil {
		errs.Add("attachments", err.Error())
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	report := &models.Report{
		ReportType:            in.ReportType,
		IncidentType:          validation.NilIfEmpty(in.IncidentType),
		Description:           strings.TrimSpace(in.Description),
		DateOfIncident:        date,
		LocationLat:           in.LocationLat,
		LocationLong:          in.LocationLong,
		Severity:              validation.NilIfEmpty(in.Severity),
		Industry:              validation.NilIfEmpty(in.Industry),
		ReporterName:          validation.NilIfEmpty(in.ReporterName),
		ReporterContact:       validation.NilIfEmpty(in.ReporterContact),
		CauseOfDeath:          validation.NilIfEmpty(in.CauseOfDeath),
		RegulationClassBroken: validation.NilIfEmpty(in.RegulationClassBroken),
		Status:                models.ReportStatusPending,
		Source:                models.ReportSourcePublic,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	s.cache.InvalidateReportStats()

	var uploadedBy *string
	if clientIP != "" {
		uploadedBy = &clientIP
	}
	result := s.files.store(ctx, report.ID, files, attachment.PublicPolicy, publicKey, uploadedBy)

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"report_id":   report.ID,
		"report_type": report.ReportType,
		"uploaded":    len(result.Uploaded),
	}).Info("публичный отчёт принят")

	return &CreateResult{Report: report, Attachments: result}, nil
}

// List возвращает страницу реестра. Выборка ограничена организацией пользователя.
func (s *ReportService) List(ctx context.Context, actor Identity, f models.ReportFilter) ([]ReportView, int, error) {
	f = s.scopeFilter(actor, f)
	if f.Limit <= 0 {
		f.Limit = ReportPageSize
	}
	reports, total, err := s.reports.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	views := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, newReportView(r))
	}
	return views, total, nil
}

func (s *ReportService) scopeFilter(actor Identity, f models.ReportFilter) models.ReportFilter {
	if !actor.IsAdmin() {
		f.OrganizationID = actor.OrganizationID
		if f.OrganizationID == nil {
			// без организации пользователь не видит ни одного отчёта
			none := uuid.Nil
			f.OrganizationID = &none
		}
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Get возвращает отчёт с вложениями и эскалациями.
func (s *ReportService) Get(ctx context.Context, actor Identity, id uuid.UUID) (*ReportDetails, error) {
	report, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	uploads, err := s.files.uploads.ListByReport(ctx, id)
	if err != nil {
		return nil, err
	}
	escalations, err := s.escalations.ListByReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReportDetails{ReportView: newReportView(*report), Uploads: uploads, Escalations: escalations}, nil
}

// Update перезаписывает поля отчёта из панели управления.
func (s *ReportService) Update(ctx context.Context, actor Identity, id uuid.UUID, in ReportInput) (*models.Report, error) {
	report, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		in.OrganizationID = actor.OrganizationID
	}
	if in.ReportedByUserID == nil {
		in.ReportedByUserID = report.ReportedByUserID
	}

	errs, date := in.validate()
	if err := s.checkReferences(ctx, errs, in.OrganizationID, nil, in.AssignedTo); err != nil {
		return nil, err
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	previous := report.Status
	in.apply(report, date)
	if err := s.reports.Update(ctx, report); err != nil {
		return nil, translate(err)
	}
	s.cache.InvalidateReportStats()
	s.notifyStatusChange(ctx, report, previous)
	return report, nil
}

// UpdateStatus меняет статус, исполнителя и отметку об обратной связи.
// EscalationRequired переводит отчёт в состояние Required.
func (s *ReportService) UpdateStatus(ctx context.Context, actor Identity, id uuid.UUID, in StatusInput) (*models.Report, error) {
	report, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	errs := validation.Errors{}
	errs.Check("status", validation.ValidateOneOf("статус", in.Status, knownReportStatuses))
	if err := s.checkReferences(ctx, errs, nil, nil, in.AssignedTo); err != nil {
		return nil, err
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	markRequired := in.EscalationRequired && report.EscalationStatus != models.EscalationRequired

	previous := report.Status
	report.Status = in.Status
	report.AssignedTo = in.AssignedTo
	if in.FeedbackGiven != nil {
		report.FeedbackGiven = *in.FeedbackGiven
	}
	if err := s.reports.UpdateStatus(ctx, report, markRequired); err != nil {
		return nil, translate(err)
	}
	s.cache.InvalidateReportStats()
	s.notifyStatusChange(ctx, report, previous)
	return report, nil
}

// MarkRequired помечает, что отчёт требует эскалации.
func (s *ReportService) MarkRequired(ctx context.Context, actor Identity, id uuid.UUID) (*models.Report, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	report, err := s.reports.MarkEscalationRequired(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	s.cache.InvalidateReportStats()
	return report, nil
}

// notifyStatusChange шлёт вебхук чат-боту, если статус его отчёта изменился.
func (s *ReportService) notifyStatusChange(ctx context.Context, report *models.Report, previous string) {
	if s.notifier == nil || report.Source != models.ReportSourceChatbot || report.Status == previous {
		return
	}
	var assignee *string
	if report.AssignedTo != nil {
		if user, err := s.users.GetByID(ctx, *report.AssignedTo); err == nil {
			name := user.FullName()
			assignee = &name
		}
	}
	s.notifier.NotifyStatusChange(report, assignee)
}

// Delete удаляет файлы вложений из хранилища, затем сам отчёт.
func (s *ReportService) Delete(ctx context.Context, actor Identity, id uuid.UUID) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	uploads, err := s.files.uploads.ListByReport(ctx, id)
	if err != nil {
		return err
	}
	s.files.removeBlobs(ctx, uploads)

	if err := s.reports.Delete(ctx, id); err != nil {
		return translate(err)
	}
	s.cache.InvalidateReportStats()

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"report_id": id,
		"uploads":   len(uploads),
	}).Info("отчёт удалён")
	return nil
}

// AddAttachments загружает файлы к существующему отчёту.
func (s *ReportService) AddAttachments(ctx context.Context, actor Identity, id uuid.UUID, files []FileInput) (*AttachmentResult, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, invalid(validation.Errors{"attachments": "нужно выбрать хотя бы один файл"})
	}
	uploadedBy := actor.UserID.String()
	result := s.files.store(ctx, id, files, attachment.AdminPolicy, adminKey, &uploadedBy)
	return &result, nil
}

// RemoveAttachment удаляет одно вложение и его файл.
func (s *ReportService) RemoveAttachment(ctx context.Context, actor Identity, reportID, uploadID uuid.UUID) error {
	if _, err := s.load(ctx, actor, reportID); err != nil {
		return err
	}
	upload, err := s.files.uploads.GetByID(ctx, reportID, uploadID)
	if err != nil {
		return translate(err)
	}
	s.files.removeBlobs(ctx, []models.ReportUpload{*upload})
	return translate(s.files.uploads.Delete(ctx, uploadID))
}

// AttachmentURL временная ссылка на файл вложения.
func (s *ReportService) AttachmentURL(ctx context.Context, actor Identity, reportID, uploadID uuid.UUID) (string, error) {
	if _, err := s.load(ctx, actor, reportID); err != nil {
		return "", err
	}
	upload, err := s.files.uploads.GetByID(ctx, reportID, uploadID)
	if err != nil {
		return "", translate(err)
	}
	if upload.StoragePath == nil || *upload.StoragePath == "" {
		return upload.FileURL, nil
	}
	url, err := s.files.blobs.TemporaryURL(ctx, *upload.StoragePath, s.urlTTL)
	if err != nil {
		return "", fmt.Errorf("report service: temporary url %w", err)
	}
	return url, nil
}

// Export выгружает отфильтрованный реестр в .xlsx.
func (s *ReportService) Export(ctx context.Context, actor Identity, f models.ReportFilter) ([]byte, error) {
	f = s.scopeFilter(actor, f)
	f.Limit, f.Offset = 0, 0
	reports, _, err := s.reports.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return export.ReportsWorkbook(reports)
}

// Stats сводка для дашборда; кэшируется на минуту.
func (s *ReportService) Stats(ctx context.Context, actor Identity) (*models.ReportStats, error) {
	scope := s.scopeFilter(actor, models.ReportFilter{}).OrganizationID
	value, err := s.cache.GetOrSet(ReportStatsCacheKey(scope), reportStatsTTL, func() (interface{}, error) {
		return s.reports.Stats(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.ReportStats), nil
}

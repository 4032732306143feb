package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/attachment"
	"github.com/ignatzorin/hsse-backend/internal/enrichment"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/storage"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

const (
	chatbotUploader      = "WhatsApp Bot"
	chatbotDefaultSource = "whatsapp_chatbot"
	defaultIndustry      = "General"
)

// chatbotSeverities тяжесть в запросах бота приходит в нижнем регистре.
var chatbotSeverities = map[string]string{
	"low":      models.SeverityLow,
	"medium":   models.SeverityMedium,
	"high":     models.SeverityHigh,
	"critical": models.SeverityCritical,
}

// ChatbotReportStore часть ReportRepository, нужная боту.
type ChatbotReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

// ChatbotService приём отчётов от WhatsApp-бота.
type ChatbotService struct {
	reports ChatbotReportStore
	users   UserLookup
	table   *enrichment.Table
	cache   *CacheService
	files   *attachmentStore
}

// NewChatbotService создаёт сервис бота. Таблица ключевых слов не меняется после запуска.
func NewChatbotService(reports ChatbotReportStore, uploads UploadRepository, users UserLookup, blobs storage.BlobStore, table *enrichment.Table, cache *CacheService) *ChatbotService {
	if table == nil {
		table = enrichment.MustDefault()
	}
	if cache == nil {
		cache = NewCacheService()
	}
	return &ChatbotService{
		reports: reports,
		users:   users,
		table:   table,
		cache:   cache,
		files:   &attachmentStore{uploads: uploads, blobs: blobs, now: time.Now},
	}
}

// MediaLink файл, уже лежащий по внешней ссылке.
type MediaLink struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
}

// ChatbotReportInput запрос бота на создание отчёта.
type ChatbotReportInput struct {
	ReportType            string
	Description           string
	DateOfIncident        string
	ReporterName          string
	ReporterContact       string
	Severity              string
	IncidentType          string
	LocationLat           *float64
	LocationLong          *float64
	Industry              string
	RegulationClassBroken string
	AIAnalysis            *string
	WhatsAppReportID      *string
	Source                string
	MediaFiles            []MediaLink
}

// EnhancedFields что было определено автоматически.
type EnhancedFields struct {
	AutoDetectedIncidentType bool                `json:"auto_detected_incident_type"`
	AutoDetectedSeverity     bool                `json:"auto_detected_severity"`
	AutoDetectedLocation     bool                `json:"auto_detected_location"`
	LocationName             string              `json:"location_name,omitempty"`
	ExtractedEntities        map[string][]string `json:"extracted_entities"`
	RegulationViolations     []string            `json:"regulation_violations"`
}

// ChatbotReportResult ответ боту после создания отчёта.
type ChatbotReportResult struct {
	ID                 uuid.UUID      `json:"id"`
	ReportType         string         `json:"report_type"`
	IncidentType       *string        `json:"incident_type"`
	Severity           *string        `json:"severity"`
	Status             string         `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	MediaFilesUploaded int            `json:"media_files_uploaded"`
	EnhancedFields     EnhancedFields `json:"enhanced_fields"`
}

// ChatbotMediaResult итог загрузки файлов ботом.
type ChatbotMediaResult struct {
	UploadedFiles []models.ReportUpload `json:"uploaded_files"`
	TotalUploaded int                   `json:"total_uploaded"`
	Errors        []FailedFile          `json:"errors"`
	ReportID      uuid.UUID             `json:"report_id"`
}

// ChatbotReportStatus состояние отчёта для ответа пользователю бота.
type ChatbotReportStatus struct {
	ID               uuid.UUID `json:"id"`
	Status           string    `json:"status"`
	Severity         *string   `json:"severity"`
	AssignedTo       *string   `json:"assigned_to"`
	IsEscalated      bool      `json:"is_escalated"`
	EscalationStatus string    `json:"escalation_status"`
	FeedbackGiven    bool      `json:"feedback_given"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	MediaFilesCount  int       `json:"media_files_count"`
}

func (in ChatbotReportInput) validate() (validation.Errors, time.Time) {
	errs := validation.Errors{}
	required := []struct {
		field, label, value string
	}{
		{"report_type", "тип отчёта", in.ReportType},
		{"description", "описание", in.Description},
		{"reporter_name", "имя заявителя", in.ReporterName},
		{"reporter_contact", "контакт заявителя", in.ReporterContact},
	}
	for _, r := range required {
		errs.Check(r.field, validation.ValidateNonEmpty(r.label, r.value))
		errs.Check(r.field, validation.ValidateLength(r.label, r.value, 0, validation.MaxReportTypeLength))
	}

	var date time.Time
	if strings.TrimSpace(in.DateOfIncident) == "" {
		errs.Add("date_of_incident", "дата инцидента обязательна")
	} else if d, err := validation.ParseDate(in.DateOfIncident); err != nil {
		errs.Check("date_of_incident", err)
	} else {
		date = d
	}

	if in.Severity != "" {
		if _, ok := chatbotSeverities[in.Severity]; !ok {
			errs.Add("severity", "тяжесть должна быть low, medium, high или critical")
		}
	}
	errs.Check("location_lat", validation.ValidateLatitude(in.LocationLat))
	errs.Check("location_long", validation.ValidateLongitude(in.LocationLong))
	errs.Check("incident_type", validation.ValidateLength("тип инцидента", in.IncidentType, 0, validation.MaxReportTypeLength))
	errs.Check("industry", validation.ValidateLength("отрасль", in.Industry, 0, validation.MaxReportTypeLength))
	errs.Check("regulation_class_broken", validation.ValidateLength("нарушенный регламент", in.RegulationClassBroken, 0, validation.MaxReportTypeLength))
	errs.Check("source", validation.ValidateLength("источник", in.Source, 0, validation.MaxReportTypeLength))

	for i, m := range in.MediaFiles {
		field := fmt.Sprintf("media_files.%d", i)
		u, err := url.ParseRequestURI(m.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add(field+".url", "некорректная ссылка на файл")
		}
		if strings.TrimSpace(m.Type) == "" {
			errs.Add(field+".type", "тип файла обязателен")
		}
	}
	return errs, date
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Submit обогащает отчёт по ключевым словам и сохраняет его вместе со ссылками на медиа.
func (s *ChatbotService) Submit(ctx context.Context, in ChatbotReportInput) (*ChatbotReportResult, error) {
	errs, date := in.validate()
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	enriched := enrichment.Enrich(s.table, enrichment.Fields{
		Description:           strings.TrimSpace(in.Description),
		IncidentType:          strings.TrimSpace(in.IncidentType),
		Severity:              in.Severity,
		LocationLat:           in.LocationLat,
		LocationLong:          in.LocationLong,
		RegulationClassBroken: strings.TrimSpace(in.RegulationClassBroken),
	})

	severityKey := enriched.Fields.Severity
	if severityKey == "" {
		severityKey = enrichment.DefaultSeverity
	}
	severity := chatbotSeverities[severityKey]

	industry := strings.TrimSpace(in.Industry)
	if industry == "" {
		industry = defaultIndustry
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = chatbotDefaultSource
	}

	metadata, err := json.Marshal(map[string]any{
		"ai_analysis":        in.AIAnalysis,
		"whatsapp_report_id": in.WhatsAppReportID,
		"source":             source,
		"enhanced_by_nlp":    true,
		"original_data": map[string]any{
			"description":   in.Description,
			"severity":      optional(in.Severity),
			"incident_type": optional(in.IncidentType),
		},
		"extracted_entities": enriched.ExtractedEntities,
	})
	if err != nil {
		return nil, fmt.Errorf("chatbot service: metadata %w", err)
	}

	report := &models.Report{
		ReportType:            strings.TrimSpace(in.ReportType),
		IncidentType:          optional(enriched.Fields.IncidentType),
		Description:           enriched.Fields.Description,
		DateOfIncident:        date,
		LocationLat:           enriched.Fields.LocationLat,
		LocationLong:          enriched.Fields.LocationLong,
		Severity:              &severity,
		Industry:              &industry,
		ReporterName:          optional(in.ReporterName),
		ReporterContact:       optional(in.ReporterContact),
		Status:                models.ReportStatusPending,
		RegulationClassBroken: optional(enriched.Fields.RegulationClassBroken),
		Source:                models.ReportSourceChatbot,
		Metadata:              metadata,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	s.cache.InvalidateReportStats()

	uploaded := s.storeLinks(ctx, report.ID, in.MediaFiles)

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"report_id":         report.ID,
		"severity":          severity,
		"incident_type":     enriched.Fields.IncidentType,
		"media_files_count": uploaded,
	}).Info("отчёт чат-бота создан")

	violations := []string{}
	if enriched.RegulationViolation != "" {
		violations = append(violations, enriched.RegulationViolation)
	}

	return &ChatbotReportResult{
		ID:                 report.ID,
		ReportType:         report.ReportType,
		IncidentType:       report.IncidentType,
		Severity:           report.Severity,
		Status:             report.Status,
		CreatedAt:          report.CreatedAt,
		MediaFilesUploaded: uploaded,
		EnhancedFields: EnhancedFields{
			AutoDetectedIncidentType: enriched.AutoDetectedIncidentType,
			AutoDetectedSeverity:     enriched.AutoDetectedSeverity,
			AutoDetectedLocation:     enriched.AutoDetectedLocation,
			LocationName:             enriched.LocationName,
			ExtractedEntities:        enriched.ExtractedEntities,
			RegulationViolations:     violations,
		},
	}, nil
}

// storeLinks записывает вложения по внешним ссылкам; ошибки только логируются.
func (s *ChatbotService) storeLinks(ctx context.Context, reportID uuid.UUID, links []MediaLink) int {
	uploader := chatbotUploader
	count := 0
	for _, m := range links {
		upload := &models.ReportUpload{
			ReportID:         reportID,
			FileURL:          m.URL,
			FileType:         m.Type,
			OriginalFilename: optional(m.Filename),
			UploadedBy:       &uploader,
		}
		if err := s.files.uploads.Create(ctx, upload); err != nil {
			logger.FromContext(ctx).WithFields(logrus.Fields{
				"report_id": reportID,
				"url":       m.URL,
				"error":     err.Error(),
			}).Warn("ссылка на медиафайл не сохранена")
			continue
		}
		count++
	}
	return count
}

// AttachMedia загружает файлы, присланные ботом, к отчёту.
func (s *ChatbotService) AttachMedia(ctx context.Context, reportID uuid.UUID, files []FileInput, uploadedBy string) (*ChatbotMediaResult, error) {
	if len(files) == 0 {
		return nil, invalid(validation.Errors{"files": "нужно передать хотя бы один файл"})
	}
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, translate(err)
	}

	uploader := strings.TrimSpace(uploadedBy)
	if uploader == "" {
		uploader = chatbotUploader
	}
	if err := validation.ValidateLength("uploaded_by", uploader, 0, validation.MaxNameLength); err != nil {
		return nil, invalid(validation.Errors{"uploaded_by": err.Error()})
	}

	result := s.files.store(ctx, reportID, files, attachment.ChatbotPolicy, chatbotKey, &uploader)
	return &ChatbotMediaResult{
		UploadedFiles: result.Uploaded,
		TotalUploaded: len(result.Uploaded),
		Errors:        result.Failed,
		ReportID:      reportID,
	}, nil
}

// Status краткое состояние отчёта.
func (s *ChatbotService) Status(ctx context.Context, reportID uuid.UUID) (*ChatbotReportStatus, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, translate(err)
	}
	count, err := s.files.uploads.CountByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	var assignee *string
	if report.AssignedTo != nil {
		if user, err := s.users.GetByID(ctx, *report.AssignedTo); err == nil {
			name := user.FullName()
			assignee = &name
		}
	}

	return &ChatbotReportStatus{
		ID:               report.ID,
		Status:           report.Status,
		Severity:         report.Severity,
		AssignedTo:       assignee,
		IsEscalated:      report.IsEscalated,
		EscalationStatus: report.EscalationStatus,
		FeedbackGiven:    report.FeedbackGiven,
		CreatedAt:        report.CreatedAt,
		UpdatedAt:        report.UpdatedAt,
		MediaFilesCount:  count,
	}, nil
}

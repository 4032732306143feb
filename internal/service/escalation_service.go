package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/metrics"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// EscalationRepository описывает атомарные операции над эскалациями.
type EscalationRepository interface {
	Escalate(ctx context.Context, esc *models.ReportEscalation, notifications []models.EscalationNotification) error
	Resolve(ctx context.Context, escalationID uuid.UUID, res models.EscalationResolution) (*models.ReportEscalation, error)
	Reassign(ctx context.Context, assignment *models.EscalationAssignment) error
	AddUpdate(ctx context.Context, upd *models.EscalationUpdate, newPriority *string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReportEscalation, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ReportEscalation, error)
	Details(ctx context.Context, id uuid.UUID) (*models.EscalationDetails, error)
}

// ReportLookup ищет отчёт по идентификатору.
type ReportLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

// UserExistence возвращает те идентификаторы, которым соответствуют пользователи.
type UserExistence interface {
	ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

// NotificationPusher доставляет уведомление подключённому пользователю.
type NotificationPusher interface {
	Push(ctx context.Context, n *models.EscalationNotification) (bool, error)
}

// NotificationPublisher передаёт уведомление внешнему диспетчеру.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload any) error
}

// NotificationTransitioner меняет статус доставки уведомления.
type NotificationTransitioner interface {
	Transition(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, to string, at time.Time) (*models.EscalationNotification, error)
}

// editableUpdateTypes типы записей, которые можно добавить в журнал напрямую.
var editableUpdateTypes = map[string]struct{}{
	models.UpdateComment:        {},
	models.UpdateStatusChange:   {},
	models.UpdatePriorityChange: {},
}

// EscalationService ведёт жизненный цикл эскалаций и рассылает уведомления.
type EscalationService struct {
	repo      EscalationRepository
	reports   ReportLookup
	users     UserExistence
	pusher    NotificationPusher
	publisher NotificationPublisher
	states    NotificationTransitioner
	now       func() time.Time
}

// NewEscalationService создаёт сервис эскалаций. pusher и publisher могут быть nil.
func NewEscalationService(
	repo EscalationRepository,
	reports ReportLookup,
	users UserExistence,
	states NotificationTransitioner,
	pusher NotificationPusher,
	publisher NotificationPublisher,
) *EscalationService {
	return &EscalationService{
		repo:      repo,
		reports:   reports,
		users:     users,
		pusher:    pusher,
		publisher: publisher,
		states:    states,
		now:       time.Now,
	}
}

// EscalateInput параметры эскалации отчёта.
type EscalateInput struct {
	Reason                  string
	Priority                string
	ImmediateActionRequired bool
	EstimatedResolutionTime *time.Time
	AdditionalNotes         *string
	NotifyUserIDs           []uuid.UUID
	NotificationType        string
}

// EscalateResult созданная эскалация и её уведомления.
type EscalateResult struct {
	Escalation    *models.ReportEscalation        `json:"escalation"`
	Notifications []models.EscalationNotification `json:"notifications"`
}

// ResolveInput данные закрытия эскалации.
type ResolveInput struct {
	Notes       string
	ActionTaken *string
}

// UpdateInput запись журнала эскалации.
type UpdateInput struct {
	Type       string
	Content    string
	IsInternal bool
	Priority   *string
}

// NotificationMessage сообщение внешнему диспетчеру уведомлений.
type NotificationMessage struct {
	NotificationID          uuid.UUID `json:"notification_id"`
	EscalationID            uuid.UUID `json:"escalation_id"`
	ReportID                uuid.UUID `json:"report_id"`
	UserID                  uuid.UUID `json:"user_id"`
	NotificationType        string    `json:"notification_type"`
	Priority                string    `json:"priority"`
	Reason                  string    `json:"reason"`
	ImmediateActionRequired bool      `json:"immediate_action_required"`
	CreatedAt               time.Time `json:"created_at"`
}

// dedupe убирает повторы, сохраняя порядок.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// validate проверяет запрос целиком до любой записи.
func (s *EscalationService) validate(ctx context.Context, in *EscalateInput) (validation.Errors, error) {
	errs := validation.Errors{}
	in.Reason = strings.TrimSpace(in.Reason)
	errs.Check("escalation_reason", validation.ValidateNonEmpty("причина эскалации", in.Reason))
	errs.Check("escalation_reason", validation.ValidateLength("причина эскалации", in.Reason, validation.MinEscalationReasonLength, 0))
	errs.Check("escalation_priority", validation.ValidateOneOf("приоритет", in.Priority, models.ValidPriorities))

	if in.NotificationType == "" {
		in.NotificationType = models.NotificationEmail
	}
	errs.Check("notification_type", validation.ValidateOneOf("канал уведомления", in.NotificationType, models.ValidNotificationTypes))

	in.NotifyUserIDs = dedupe(in.NotifyUserIDs)
	if len(in.NotifyUserIDs) == 0 {
		errs.Add("notify_users", "нужно выбрать хотя бы одного получателя")
		return errs, nil
	}

	existing, err := s.users.ExistingIDs(ctx, in.NotifyUserIDs)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		found[id] = struct{}{}
	}
	var missing []string
	for _, id := range in.NotifyUserIDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		errs.Add("notify_users", "пользователи не найдены: "+strings.Join(missing, ", "))
	}
	return errs, nil
}

func (s *EscalationService) loadReport(ctx context.Context, actor Identity, reportID uuid.UUID) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, translate(err)
	}
	if !actor.CanAccessOrganization(report.OrganizationID) {
		return nil, apperror.ErrForbidden
	}
	return report, nil
}

func (s *EscalationService) loadEscalation(ctx context.Context, actor Identity, id uuid.UUID) (*models.ReportEscalation, error) {
	esc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if _, err := s.loadReport(ctx, actor, esc.ReportID); err != nil {
		return nil, err
	}
	return esc, nil
}

// Escalate эскалирует отчёт: одна транзакция пишет эскалацию, уведомления и состояние отчёта,
// после фиксации каждое уведомление отправляется независимо от остальных.
func (s *EscalationService) Escalate(ctx context.Context, actor Identity, reportID uuid.UUID, in EscalateInput) (*EscalateResult, error) {
	report, err := s.loadReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}

	errs, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}
	if report.EscalationStatus == models.EscalationEscalated {
		return nil, apperror.ErrReportAlreadyEscalated
	}

	esc := &models.ReportEscalation{
		ReportID:                reportID,
		EscalatedByUserID:       actor.UserID,
		EscalationReason:        in.Reason,
		EscalationPriority:      in.Priority,
		ImmediateActionRequired: in.ImmediateActionRequired,
		EstimatedResolutionTime: in.EstimatedResolutionTime,
		AdditionalNotes:         validation.NilIfEmpty(in.AdditionalNotes),
	}

	metadata, err := json.Marshal(map[string]string{
		"initiated_by": actor.UserID.String(),
		"report_id":    reportID.String(),
		"priority":     in.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("escalation service: metadata %w", err)
	}
	notifications := make([]models.EscalationNotification, 0, len(in.NotifyUserIDs))
	for _, userID := range in.NotifyUserIDs {
		notifications = append(notifications, models.EscalationNotification{
			UserID:           userID,
			NotificationType: in.NotificationType,
			Metadata:         metadata,
		})
	}

	if err := s.repo.Escalate(ctx, esc, notifications); err != nil {
		return nil, translate(err)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"report_id":     reportID,
		"escalation_id": esc.ID,
		"priority":      esc.EscalationPriority,
		"recipients":    len(notifications),
	}).Info("отчёт эскалирован")

	s.dispatch(ctx, esc, notifications)

	return &EscalateResult{Escalation: esc, Notifications: notifications}, nil
}

// dispatch отправляет уведомления после фиксации транзакции. Ошибка одного
// уведомления логируется и не мешает остальным; запись в БД не откатывается.
func (s *EscalationService) dispatch(ctx context.Context, esc *models.ReportEscalation, notifications []models.EscalationNotification) {
	for i := range notifications {
		n := &notifications[i]
		log := logger.FromContext(ctx).WithFields(logrus.Fields{
			"notification_id": n.ID,
			"user_id":         n.UserID,
			"type":            n.NotificationType,
		})

		delivered := false
		if s.pusher != nil {
			ok, err := s.pusher.Push(ctx, n)
			switch {
			case err != nil:
				log.WithField("error", err.Error()).Warn("не удалось отправить уведомление в websocket")
				s.count(n, metrics.OutcomePushFailed)
			case ok:
				delivered = true
				s.count(n, metrics.OutcomePushed)
			default:
				s.count(n, metrics.OutcomeOffline)
			}
		}

		if delivered && n.NotificationType == models.NotificationPush {
			updated, err := s.states.Transition(ctx, n.ID, nil, models.NotificationSent, s.now())
			if err != nil {
				log.WithField("error", err.Error()).Warn("не удалось отметить доставку уведомления")
				s.count(n, metrics.OutcomeRecordFailed)
			} else {
				*n = *updated
				s.count(n, metrics.OutcomeMarkedSent)
			}
			continue
		}

		if s.publisher == nil {
			continue
		}
		msg := NotificationMessage{
			NotificationID:          n.ID,
			EscalationID:            esc.ID,
			ReportID:                esc.ReportID,
			UserID:                  n.UserID,
			NotificationType:        n.NotificationType,
			Priority:                esc.EscalationPriority,
			Reason:                  esc.EscalationReason,
			ImmediateActionRequired: esc.ImmediateActionRequired,
			CreatedAt:               n.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			log.WithField("error", err.Error()).Warn("не удалось передать уведомление в очередь")
			s.count(n, metrics.OutcomeQueueFailed)
			continue
		}
		s.count(n, metrics.OutcomeQueued)
	}
}

func (s *EscalationService) count(n *models.EscalationNotification, outcome string) {
	metrics.EscalationNotifications.WithLabelValues(n.NotificationType, outcome).Inc()
}

// Resolve закрывает эскалацию.
func (s *EscalationService) Resolve(ctx context.Context, actor Identity, escalationID uuid.UUID, in ResolveInput) (*models.ReportEscalation, error) {
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		return nil, invalid(validation.Errors{"resolution_notes": "заметки о закрытии обязательны"})
	}
	if _, err := s.loadEscalation(ctx, actor, escalationID); err != nil {
		return nil, err
	}

	esc, err := s.repo.Resolve(ctx, escalationID, models.EscalationResolution{
		ResolvedBy: actor.UserID,
		Notes:      notes,
		Action:     validation.NilIfEmpty(in.ActionTaken),
		ResolvedAt: s.now(),
	})
	if err != nil {
		return nil, translate(err)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"escalation_id": escalationID,
		"report_id":     esc.ReportID,
	}).Info("эскалация закрыта")
	return esc, nil
}

// Reassign назначает нового ответственного.
func (s *EscalationService) Reassign(ctx context.Context, actor Identity, escalationID, assigneeID uuid.UUID, notes *string) (*models.EscalationAssignment, error) {
	existing, err := s.users.ExistingIDs(ctx, []uuid.UUID{assigneeID})
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, invalid(validation.Errors{"assigned_to": "пользователь не найден"})
	}
	if _, err := s.loadEscalation(ctx, actor, escalationID); err != nil {
		return nil, err
	}

	assignment := &models.EscalationAssignment{
		EscalationID: escalationID,
		AssignedTo:   assigneeID,
		AssignedBy:   actor.UserID,
		Notes:        validation.NilIfEmpty(notes),
	}
	if err := s.repo.Reassign(ctx, assignment); err != nil {
		return nil, translate(err)
	}
	return assignment, nil
}

// AddUpdate добавляет запись в журнал эскалации.
func (s *EscalationService) AddUpdate(ctx context.Context, actor Identity, escalationID uuid.UUID, in UpdateInput) (*models.EscalationUpdate, error) {
	errs := validation.Errors{}
	content := strings.TrimSpace(in.Content)
	errs.Check("update_type", validation.ValidateOneOf("тип записи", in.Type, editableUpdateTypes))
	errs.Check("update_content", validation.ValidateNonEmpty("текст записи", content))

	var priority *string
	if in.Type == models.UpdatePriorityChange {
		if in.Priority == nil {
			errs.Add("escalation_priority", "приоритет обязателен")
		} else {
			errs.Check("escalation_priority", validation.ValidateOneOf("приоритет", *in.Priority, models.ValidPriorities))
			priority = in.Priority
		}
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}
	if _, err := s.loadEscalation(ctx, actor, escalationID); err != nil {
		return nil, err
	}

	upd := &models.EscalationUpdate{
		EscalationID:  escalationID,
		UserID:        actor.UserID,
		UpdateType:    in.Type,
		UpdateContent: content,
		IsInternal:    in.IsInternal,
	}
	if err := s.repo.AddUpdate(ctx, upd, priority); err != nil {
		return nil, translate(err)
	}
	return upd, nil
}

// ListForReport эскалации отчёта, последние первыми.
func (s *EscalationService) ListForReport(ctx context.Context, actor Identity, reportID uuid.UUID) ([]models.ReportEscalation, error) {
	if _, err := s.loadReport(ctx, actor, reportID); err != nil {
		return nil, err
	}
	return s.repo.ListByReport(ctx, reportID)
}

// Get эскалация с уведомлениями, журналом и назначениями.
func (s *EscalationService) Get(ctx context.Context, actor Identity, id uuid.UUID) (*models.EscalationDetails, error) {
	if _, err := s.loadEscalation(ctx, actor, id); err != nil {
		return nil, err
	}
	details, err := s.repo.Details(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return details, nil
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// NotificationPageSize размер страницы уведомлений по умолчанию.
const NotificationPageSize = 20

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.EscalationNotification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	Transition(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, to string, at time.Time) (*models.EscalationNotification, error)
}

// deliveryStatuses статусы, которые сообщает внешний диспетчер.
var deliveryStatuses = map[string]struct{}{
	models.NotificationSent:   {},
	models.NotificationFailed: {},
}

// NotificationService уведомления об эскалациях: чтение получателем и учёт доставки.
type NotificationService struct {
	repo NotificationRepository
	now  func() time.Time
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo, now: time.Now}
}

// ListMine возвращает уведомления пользователя, новые первыми.
func (s *NotificationService) ListMine(ctx context.Context, actor Identity, limit, offset int, unreadOnly bool) ([]models.EscalationNotification, int, error) {
	if limit <= 0 {
		limit = NotificationPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, actor.UserID, limit, offset, unreadOnly)
}

// CountUnread число уведомлений в статусах pending и sent.
func (s *NotificationService) CountUnread(ctx context.Context, actor Identity) (int, error) {
	return s.repo.CountUnread(ctx, actor.UserID)
}

// MarkRead отмечает своё уведомление прочитанным; допустимо только из sent.
func (s *NotificationService) MarkRead(ctx context.Context, actor Identity, id uuid.UUID) (*models.EscalationNotification, error) {
	owner := actor.UserID
	n, err := s.repo.Transition(ctx, id, &owner, models.NotificationRead, s.now())
	if err != nil {
		return nil, translate(err)
	}
	return n, nil
}

// RecordDelivery фиксирует результат доставки от внешнего диспетчера: pending → sent или failed.
func (s *NotificationService) RecordDelivery(ctx context.Context, id uuid.UUID, status string) (*models.EscalationNotification, error) {
	if err := validation.ValidateOneOf("статус доставки", status, deliveryStatuses); err != nil {
		return nil, invalid(validation.Errors{"status": err.Error()})
	}

	n, err := s.repo.Transition(ctx, id, nil, status, s.now())
	if err != nil {
		return nil, translate(err)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"notification_id": id,
		"status":          status,
	}).Info("статус доставки уведомления обновлён")
	return n, nil
}

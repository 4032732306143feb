package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

var (
	// ErrNotificationNotFound возвращается, когда уведомление не найдено.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrInvalidNotificationTransition переход статуса уведомления назад или через шаг.
	ErrInvalidNotificationTransition = errors.New("invalid notification transition")
)

// NotificationRepository отвечает за уведомления об эскалациях.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository создаёт экземпляр репозитория.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// GetByID возвращает уведомление по идентификатору.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EscalationNotification, error) {
	var n models.EscalationNotification
	if err := r.db.GetContext(ctx, &n, `SELECT * FROM escalation_notifications WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification repository: get by id %w", err)
	}
	return &n, nil
}

// ListByUser возвращает уведомления пользователя, новые первыми.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.EscalationNotification, int, error) {
	where := ` WHERE user_id = $1`
	if unreadOnly {
		where += ` AND status IN ('pending', 'sent')`
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM escalation_notifications`+where, userID); err != nil {
		return nil, 0, fmt.Errorf("notification repository: count %w", err)
	}

	var list []models.EscalationNotification
	if err := r.db.SelectContext(ctx, &list,
		`SELECT * FROM escalation_notifications`+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	); err != nil {
		return nil, 0, fmt.Errorf("notification repository: list %w", err)
	}
	return list, total, nil
}

// CountUnread возвращает количество непрочитанных уведомлений пользователя.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM escalation_notifications WHERE user_id = $1 AND status IN ('pending', 'sent')
	`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}
	return count, nil
}

// Transition переводит уведомление в статус to, только если текущий статус допускает такой переход.
// Проверка выполняется в самом UPDATE, поэтому параллельные вызовы не откатят статус назад.
// ownerID, если задан, ограничивает обновление уведомлениями этого пользователя.
func (r *NotificationRepository) Transition(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, to string, at time.Time) (*models.EscalationNotification, error) {
	from := models.NotificationSourceStatuses(to)
	if len(from) == 0 {
		return nil, ErrInvalidNotificationTransition
	}

	var sentAt, readAt *time.Time
	switch to {
	case models.NotificationSent:
		sentAt = &at
	case models.NotificationRead:
		readAt = &at
	}

	var n models.EscalationNotification
	err := r.db.GetContext(ctx, &n, `
		UPDATE escalation_notifications
		SET status = $2, sent_at = COALESCE($3, sent_at), read_at = COALESCE($4, read_at), updated_at = NOW()
		WHERE id = $1 AND status = ANY($5) AND ($6::uuid IS NULL OR user_id = $6)
		RETURNING *
	`, id, to, sentAt, readAt, pq.Array(from), ownerID)
	if err == nil {
		return &n, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification repository: transition %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if ownerID != nil && current.UserID != *ownerID {
		return nil, ErrNotificationNotFound
	}
	return nil, ErrInvalidNotificationTransition
}

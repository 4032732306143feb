package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReportEscalation одно событие эскалации отчёта.
type ReportEscalation struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	ReportID                uuid.UUID  `db:"report_id" json:"report_id"`
	EscalatedByUserID       uuid.UUID  `db:"escalated_by_user_id" json:"escalated_by_user_id"`
	EscalationReason        string     `db:"escalation_reason" json:"escalation_reason"`
	EscalationPriority      string     `db:"escalation_priority" json:"escalation_priority"`
	ImmediateActionRequired bool       `db:"immediate_action_required" json:"immediate_action_required"`
	EstimatedResolutionTime *time.Time `db:"estimated_resolution_time" json:"estimated_resolution_time,omitempty"`
	AdditionalNotes         *string    `db:"additional_notes" json:"additional_notes,omitempty"`
	EscalatedAt             time.Time  `db:"escalated_at" json:"escalated_at"`
	ResolvedAt              *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedByUserID        *uuid.UUID `db:"resolved_by_user_id" json:"resolved_by_user_id,omitempty"`
	ResolutionNotes         *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedByAction        *string    `db:"resolved_by_action" json:"resolved_by_action,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// IsResolved закрыта ли эскалация.
func (e *ReportEscalation) IsResolved() bool {
	return e.ResolvedAt != nil
}

// EscalationResolution данные закрытия эскалации; записываются только целиком.
type EscalationResolution struct {
	ResolvedBy uuid.UUID
	Notes      string
	Action     *string
	ResolvedAt time.Time
}

// EscalationNotification уведомление пользователя об эскалации.
type EscalationNotification struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	EscalationID     uuid.UUID       `db:"escalation_id" json:"escalation_id"`
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	NotificationType string          `db:"notification_type" json:"notification_type"`
	Status           string          `db:"status" json:"status"`
	SentAt           *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	ReadAt           *time.Time      `db:"read_at" json:"read_at,omitempty"`
	Metadata         json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// notificationTransitions допустимые переходы: pending → sent → read, pending → failed.
var notificationTransitions = map[string][]string{
	NotificationSent:   {NotificationPending},
	NotificationFailed: {NotificationPending},
	NotificationRead:   {NotificationSent},
}

// NotificationSourceStatuses из каких статусов можно перейти в target.
func NotificationSourceStatuses(target string) []string {
	return notificationTransitions[target]
}

// CanTransitionNotification проверяет монотонность перехода статуса уведомления.
func CanTransitionNotification(from, to string) bool {
	for _, s := range notificationTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// EscalationUpdate запись журнала эскалации.
type EscalationUpdate struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	EscalationID   uuid.UUID       `db:"escalation_id" json:"escalation_id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	UpdateType     string          `db:"update_type" json:"update_type"`
	UpdateContent  string          `db:"update_content" json:"update_content"`
	PreviousValues json.RawMessage `db:"previous_values" json:"previous_values,omitempty"`
	NewValues      json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IsInternal     bool            `db:"is_internal" json:"is_internal"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// EscalationAssignment назначение ответственного по эскалации.
type EscalationAssignment struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	EscalationID uuid.UUID  `db:"escalation_id" json:"escalation_id"`
	AssignedTo   uuid.UUID  `db:"assigned_to" json:"assigned_to"`
	AssignedBy   uuid.UUID  `db:"assigned_by" json:"assigned_by"`
	Status       string     `db:"status" json:"status"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	AssignedAt   time.Time  `db:"assigned_at" json:"assigned_at"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// EscalationDetails эскалация вместе с уведомлениями, журналом и назначениями.
type EscalationDetails struct {
	*ReportEscalation
	Notifications []EscalationNotification `json:"notifications"`
	Updates       []EscalationUpdate       `json:"updates"`
	Assignments   []EscalationAssignment   `json:"assignments"`
}

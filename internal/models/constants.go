package models

import "sort"

// Тяжесть инцидента.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Статусы отчёта. Статус свободный, здесь перечислены известные значения.
const (
	ReportStatusPending     = "Pending"
	ReportStatusInProgress  = "In Progress"
	ReportStatusUnderReview = "Under Review"
	ReportStatusResolved    = "Resolved"
	ReportStatusCompleted   = "Completed"
	ReportStatusClosed      = "Closed"
)

// Состояния эскалации отчёта.
const (
	EscalationNotRequired = "Not Required"
	EscalationRequired    = "Required"
	EscalationEscalated   = "Escalated"
	EscalationResolved    = "Resolved"
)

// Источник отчёта.
const (
	ReportSourceAdmin   = "admin"
	ReportSourcePublic  = "public"
	ReportSourceChatbot = "chatbot"
)

// Приоритет эскалации.
const (
	PriorityCritical = "Critical"
	PriorityHigh     = "High"
	PriorityMedium   = "Medium"
	PriorityLow      = "Low"
)

// Каналы и статусы уведомлений об эскалации.
const (
	NotificationEmail = "email"
	NotificationSMS   = "sms"
	NotificationPush  = "push"

	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationRead    = "read"
)

// Типы записей журнала эскалации.
const (
	UpdateComment        = "comment"
	UpdateStatusChange   = "status_change"
	UpdatePriorityChange = "priority_change"
	UpdateAssignment     = "assignment"
	UpdateResolution     = "resolution"
)

// Статусы назначения по эскалации.
const (
	AssignmentAssigned   = "assigned"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
	AssignmentReassigned = "reassigned"
)

// Роли участников организации.
const (
	RoleEmployee   = "employee"
	RoleSupervisor = "supervisor"
	RoleManager    = "manager"
	RoleAdmin      = "admin"
	RoleContractor = "contractor"
)

// Статусы прохождения обучения.
const (
	TrainingPending    = "Pending"
	TrainingInProgress = "In Progress"
	TrainingCompleted  = "Completed"
	TrainingFailed     = "Failed"
	TrainingCancelled  = "Cancelled"
)

// Статусы опасностей.
const (
	HazardOpen      = "Open"
	HazardMitigated = "Mitigated"
	HazardClosed    = "Closed"
)

// ValidSeverities список допустимых значений тяжести.
var ValidSeverities = map[string]struct{}{
	SeverityLow:      {},
	SeverityMedium:   {},
	SeverityHigh:     {},
	SeverityCritical: {},
}

// ValidPriorities список допустимых приоритетов эскалации.
var ValidPriorities = map[string]struct{}{
	PriorityCritical: {},
	PriorityHigh:     {},
	PriorityMedium:   {},
	PriorityLow:      {},
}

// ValidNotificationTypes список каналов уведомлений.
var ValidNotificationTypes = map[string]struct{}{
	NotificationEmail: {},
	NotificationSMS:   {},
	NotificationPush:  {},
}

// ValidRoles список ролей в организации.
var ValidRoles = map[string]struct{}{
	RoleEmployee:   {},
	RoleSupervisor: {},
	RoleManager:    {},
	RoleAdmin:      {},
	RoleContractor: {},
}

// ValidTrainingStatuses список статусов прохождения обучения.
var ValidTrainingStatuses = map[string]struct{}{
	TrainingPending:    {},
	TrainingInProgress: {},
	TrainingCompleted:  {},
	TrainingFailed:     {},
	TrainingCancelled:  {},
}

// ValidHazardStatuses список статусов опасностей.
var ValidHazardStatuses = map[string]struct{}{
	HazardOpen:      {},
	HazardMitigated: {},
	HazardClosed:    {},
}

// PublicReportTypes типы отчётов, доступные в публичной форме.
var PublicReportTypes = map[string]struct{}{
	"Accident":      {},
	"Near Miss":     {},
	"Hazard":        {},
	"Environmental": {},
	"Security":      {},
	"Other":         {},
}

// PublicUpdateStatuses статусы, которые можно выставить при обработке отчёта.
var PublicUpdateStatuses = map[string]struct{}{
	ReportStatusPending:    {},
	ReportStatusInProgress: {},
	ReportStatusResolved:   {},
	ReportStatusClosed:     {},
}

// Keys возвращает отсортированные ключи множества.
func Keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

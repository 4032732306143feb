package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Report описывает отчёт об инциденте HSSE.
type Report struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	ReportType            string          `db:"report_type" json:"report_type"`
	IncidentType          *string         `db:"incident_type" json:"incident_type,omitempty"`
	Description           string          `db:"description" json:"description"`
	DateOfIncident        time.Time       `db:"date_of_incident" json:"date_of_incident"`
	LocationLat           *float64        `db:"location_lat" json:"location_lat,omitempty"`
	LocationLong          *float64        `db:"location_long" json:"location_long,omitempty"`
	Severity              *string         `db:"severity" json:"severity,omitempty"`
	Industry              *string         `db:"industry" json:"industry,omitempty"`
	ReporterName          *string         `db:"reporter_name" json:"reporter_name,omitempty"`
	ReporterContact       *string         `db:"reporter_contact" json:"reporter_contact,omitempty"`
	Status                string          `db:"status" json:"status"`
	AssignedTo            *uuid.UUID      `db:"assigned_to" json:"assigned_to,omitempty"`
	OrganizationID        *uuid.UUID      `db:"organization_id" json:"organization_id,omitempty"`
	ReportedByUserID      *uuid.UUID      `db:"reported_by_user_id" json:"reported_by_user_id,omitempty"`
	IsEscalated           bool            `db:"is_escalated" json:"is_escalated"`
	EscalationStatus      string          `db:"escalation_status" json:"escalation_status"`
	CauseOfDeath          *string         `db:"cause_of_death" json:"cause_of_death,omitempty"`
	RegulationClassBroken *string         `db:"regulation_class_broken" json:"regulation_class_broken,omitempty"`
	FeedbackGiven         bool            `db:"feedback_given" json:"feedback_given"`
	Source                string          `db:"source" json:"source"`
	Metadata              json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// ReportUpload описывает вложение к отчёту.
type ReportUpload struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ReportID         uuid.UUID `db:"report_id" json:"report_id"`
	FileURL          string    `db:"file_url" json:"file_url"`
	StoragePath      *string   `db:"storage_path" json:"-"`
	FileType         string    `db:"file_type" json:"file_type"`
	OriginalFilename *string   `db:"original_filename" json:"original_filename,omitempty"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	UploadedBy       *string   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// ReportFilter параметры выборки реестра отчётов.
type ReportFilter struct {
	Search         string
	Status         string
	Severity       string
	ReportType     string
	Industry       string
	Escalated      *bool
	DateFrom       *time.Time
	DateTo         *time.Time
	OrganizationID *uuid.UUID
	Limit          int
	Offset         int
}

// ReportStats сводка по реестру для дашборда.
type ReportStats struct {
	Total      int            `json:"total"`
	Escalated  int            `json:"escalated"`
	ByStatus   map[string]int `json:"by_status"`
	BySeverity map[string]int `json:"by_severity"`
}

// CountRow строка агрегата GROUP BY.
type CountRow struct {
	Key   *string `db:"key"`
	Count int     `db:"count"`
}

var statusColors = map[string]string{
	ReportStatusPending:     "yellow",
	ReportStatusInProgress:  "blue",
	ReportStatusCompleted:   "green",
	ReportStatusResolved:    "green",
	ReportStatusClosed:      "gray",
	ReportStatusUnderReview: "purple",
}

var severityColors = map[string]string{
	SeverityLow:      "green",
	SeverityMedium:   "yellow",
	SeverityHigh:     "orange",
	SeverityCritical: "red",
}

// StatusColor цвет бейджа статуса для интерфейса.
func (r *Report) StatusColor() string {
	if c, ok := statusColors[r.Status]; ok {
		return c
	}
	return "gray"
}

// SeverityColor цвет бейджа тяжести для интерфейса.
func (r *Report) SeverityColor() string {
	if r.Severity == nil {
		return "gray"
	}
	if c, ok := severityColors[*r.Severity]; ok {
		return c
	}
	return "gray"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Hazard выявленная опасность на объекте организации.
type Hazard struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Description    string    `db:"description" json:"description"`
	RiskLevel      string    `db:"risk_level" json:"risk_level"`
	MitigationPlan *string   `db:"mitigation_plan" json:"mitigation_plan,omitempty"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EmergencyPlan план реагирования на чрезвычайные ситуации.
type EmergencyPlan struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OrganizationID uuid.UUID  `db:"organization_id" json:"organization_id"`
	PlanName       string     `db:"plan_name" json:"plan_name"`
	DocumentURL    *string    `db:"document_url" json:"document_url,omitempty"`
	LastReviewedAt *time.Time `db:"last_reviewed_at" json:"last_reviewed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Training курс по охране труда.
type Training struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description,omitempty"`
	Industry      *string   `db:"industry" json:"industry,omitempty"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Enrollment запись пользователя на обучение.
type Enrollment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	OrganizationID *uuid.UUID `db:"organization_id" json:"organization_id,omitempty"`
	TrainingID     uuid.UUID  `db:"training_id" json:"training_id"`
	Status         string     `db:"status" json:"status"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Progress процент прохождения по статусу.
func (e *Enrollment) Progress() int {
	switch e.Status {
	case TrainingInProgress:
		return 50
	case TrainingCompleted:
		return 100
	default:
		return 0
	}
}

// EnrollmentStats статистика записей на конкретный курс.
type EnrollmentStats struct {
	TotalEnrolled  int     `db:"total_enrolled" json:"total_enrolled"`
	Completed      int     `db:"completed" json:"completed"`
	Pending        int     `db:"pending" json:"pending"`
	InProgress     int     `db:"in_progress" json:"in_progress"`
	CompletionRate float64 `db:"-" json:"completion_rate"`
}

// OrganizationEnrollment число записей на курс от одной организации.
type OrganizationEnrollment struct {
	Organization string `db:"organization" json:"organization"`
	Count        int    `db:"count" json:"count"`
}

// TrainingStatistics общая статистика по обучению.
type TrainingStatistics struct {
	TotalTrainings     int `db:"total_trainings" json:"total_trainings"`
	IndustriesCovered  int `db:"industries_covered" json:"industries_covered"`
	TotalEnrollments   int `db:"total_enrollments" json:"total_enrollments"`
	CompletedTrainings int `db:"completed_trainings" json:"completed_trainings"`
}

// ScrapedItem материал из внешней ленты новостей и соцсетей.
type ScrapedItem struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Source      string     `db:"source" json:"source"`
	Category    string     `db:"category" json:"category"`
	Title       string     `db:"title" json:"title"`
	Content     *string    `db:"content" json:"content,omitempty"`
	URL         *string    `db:"url" json:"url,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	ScrapedAt   time.Time  `db:"scraped_at" json:"scraped_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

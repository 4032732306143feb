package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает учётную запись сотрудника или администратора.
type User struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	Email           string     `db:"email" json:"email"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Address         *string    `db:"address" json:"address,omitempty"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at,omitempty"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName имя и фамилия через пробел.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Organization предприятие, от имени которого подаются отчёты.
type Organization struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Industry      string    `db:"industry" json:"industry"`
	ContactPerson string    `db:"contact_person" json:"contact_person"`
	ContactEmail  string    `db:"contact_email" json:"contact_email"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Membership связь пользователя с организацией (одна на пользователя).
type Membership struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	OrganizationID *uuid.UUID `db:"organization_id" json:"organization_id,omitempty"`
	Role           string     `db:"role" json:"role"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	IsMinistry     bool       `db:"is_ministry" json:"is_ministry"`
	DisabledAt     *time.Time `db:"disabled_at" json:"disabled_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// MemberView строка списка пользователей с членством и названием организации.
type MemberView struct {
	Membership
	FirstName        string  `db:"first_name" json:"first_name"`
	LastName         string  `db:"last_name" json:"last_name"`
	Email            string  `db:"email" json:"email"`
	OrganizationName *string `db:"organization_name" json:"organization_name,omitempty"`
}

// MemberFilter параметры поиска пользователей.
type MemberFilter struct {
	Search         string
	Role           string
	OrganizationID *uuid.UUID
	// Status: active, inactive или disabled.
	Status     string
	IsMinistry *bool
	Limit      int
	Offset     int
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository/common"
)

// ErrOrganizationNotFound организация не найдена.
var ErrOrganizationNotFound = errors.New("organization not found")

// OrganizationRepository работает с таблицей organizations.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository создаёт экземпляр.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create сохраняет организацию.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, industry, contact_person, contact_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, org.Name, org.Industry, org.ContactPerson, org.ContactEmail).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return fmt.Errorf("organization repository: create %w", err)
	}
	return nil
}

// Update перезаписывает поля организации.
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, industry = $3, contact_person = $4, contact_email = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, org.ID, org.Name, org.Industry, org.ContactPerson, org.ContactEmail).
		Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrganizationNotFound
		}
		return fmt.Errorf("organization repository: update %w", err)
	}
	return nil
}

// GetByID возвращает организацию.
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return common.GetByID[models.Organization](ctx, r.db, "organizations", id, ErrOrganizationNotFound)
}

// List возвращает страницу организаций, новые первыми.
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]models.Organization, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM organizations`); err != nil {
		return nil, 0, fmt.Errorf("organization repository: count %w", err)
	}

	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, `
		SELECT * FROM organizations ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("organization repository: list %w", err)
	}
	return orgs, total, nil
}

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

// ErrHazardNotFound опасность не найдена.
var ErrHazardNotFound = errors.New("hazard not found")

// HazardRepository работает с таблицей hazards.
type HazardRepository struct {
	db *sqlx.DB
}

// NewHazardRepository создаёт экземпляр.
func NewHazardRepository(db *sqlx.DB) *HazardRepository {
	return &HazardRepository{db: db}
}

// Create сохраняет опасность.
func (r *HazardRepository) Create(ctx context.Context, h *models.Hazard) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO hazards (organization_id, description, risk_level, mitigation_plan, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, h.OrganizationID, h.Description, h.RiskLevel, h.MitigationPlan, h.Status,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return fmt.Errorf("hazard repository: create %w", err)
	}
	return nil
}

// Update перезаписывает поля опасности.
func (r *HazardRepository) Update(ctx context.Context, h *models.Hazard) error {
	if err := r.db.QueryRowxContext(ctx, `
		UPDATE hazards
		SET description = $2, risk_level = $3, mitigation_plan = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, h.ID, h.Description, h.RiskLevel, h.MitigationPlan, h.Status).Scan(&h.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrHazardNotFound
		}
		return fmt.Errorf("hazard repository: update %w", err)
	}
	return nil
}

// GetByID возвращает опасность.
func (r *HazardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Hazard, error) {
	return common.GetByID[models.Hazard](ctx, r.db, "hazards", id, ErrHazardNotFound)
}

// List возвращает опасности, при organizationID только этой организации.
func (r *HazardRepository) List(ctx context.Context, organizationID *uuid.UUID, status string, limit, offset int) ([]models.Hazard, int, error) {
	var p common.Placeholder
	if organizationID != nil {
		p.Add("organization_id = ?", *organizationID)
	}
	if status != "" {
		p.Add("status = ?", status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM hazards`+p.Where(), p.Args()...); err != nil {
		return nil, 0, fmt.Errorf("hazard repository: count %w", err)
	}

	query := `SELECT * FROM hazards` + p.Where() +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", p.Next(), p.Next()+1)
	var list []models.Hazard
	if err := r.db.SelectContext(ctx, &list, query, append(p.Args(), limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("hazard repository: list %w", err)
	}
	return list, total, nil
}

// Delete удаляет опасность.
func (r *HazardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hazards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("hazard repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrHazardNotFound
	}
	return nil
}

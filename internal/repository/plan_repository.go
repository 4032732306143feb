package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository/common"
)

// ErrPlanNotFound план реагирования не найден.
var ErrPlanNotFound = errors.New("emergency plan not found")

// PlanRepository работает с таблицей emergency_response_plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository создаёт экземпляр.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create сохраняет план.
func (r *PlanRepository) Create(ctx context.Context, p *models.EmergencyPlan) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO emergency_response_plans (organization_id, plan_name, document_url, last_reviewed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.OrganizationID, p.PlanName, p.DocumentURL, p.LastReviewedAt).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("plan repository: create %w", err)
	}
	return nil
}

// Update перезаписывает название и ссылку на документ.
func (r *PlanRepository) Update(ctx context.Context, p *models.EmergencyPlan) error {
	if err := r.db.QueryRowxContext(ctx, `
		UPDATE emergency_response_plans SET plan_name = $2, document_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.PlanName, p.DocumentURL).Scan(&p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlanNotFound
		}
		return fmt.Errorf("plan repository: update %w", err)
	}
	return nil
}

// MarkReviewed отмечает дату последнего пересмотра плана.
func (r *PlanRepository) MarkReviewed(ctx context.Context, id uuid.UUID, at time.Time) (*models.EmergencyPlan, error) {
	var p models.EmergencyPlan
	if err := r.db.GetContext(ctx, &p, `
		UPDATE emergency_response_plans SET last_reviewed_at = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("plan repository: mark reviewed %w", err)
	}
	return &p, nil
}

// GetByID возвращает план.
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmergencyPlan, error) {
	return common.GetByID[models.EmergencyPlan](ctx, r.db, "emergency_response_plans", id, ErrPlanNotFound)
}

// List возвращает планы организации или все планы.
func (r *PlanRepository) List(ctx context.Context, organizationID *uuid.UUID, limit, offset int) ([]models.EmergencyPlan, int, error) {
	var p common.Placeholder
	if organizationID != nil {
		p.Add("organization_id = ?", *organizationID)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM emergency_response_plans`+p.Where(), p.Args()...); err != nil {
		return nil, 0, fmt.Errorf("plan repository: count %w", err)
	}

	query := `SELECT * FROM emergency_response_plans` + p.Where() +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", p.Next(), p.Next()+1)
	var list []models.EmergencyPlan
	if err := r.db.SelectContext(ctx, &list, query, append(p.Args(), limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("plan repository: list %w", err)
	}
	return list, total, nil
}

// Delete удаляет план.
func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM emergency_response_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("plan repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	return nil
}

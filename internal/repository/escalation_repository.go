package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository/common"
)

var (
	// ErrEscalationNotFound эскалация не найдена.
	ErrEscalationNotFound = errors.New("escalation not found")
	// ErrReportAlreadyEscalated у отчёта уже есть открытая эскалация.
	ErrReportAlreadyEscalated = errors.New("report already escalated")
	// ErrEscalationAlreadyResolved эскалация уже закрыта.
	ErrEscalationAlreadyResolved = errors.New("escalation already resolved")
)

// EscalationRepository ведёт эскалации, их журнал и назначения.
// Все изменения состояния выполняются в одной транзакции с блокировкой строки отчёта.
type EscalationRepository struct {
	db *sqlx.DB
}

// NewEscalationRepository создаёт экземпляр.
func NewEscalationRepository(db *sqlx.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

func lockReport(ctx context.Context, tx *sqlx.Tx, reportID uuid.UUID) (string, error) {
	var status string
	err := tx.GetContext(ctx, &status, `SELECT escalation_status FROM reports WHERE id = $1 FOR UPDATE`, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrReportNotFound
		}
		return "", fmt.Errorf("lock report %w", err)
	}
	return status, nil
}

func lockEscalation(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.ReportEscalation, error) {
	var esc models.ReportEscalation
	if err := tx.GetContext(ctx, &esc, `SELECT * FROM report_escalations WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscalationNotFound
		}
		return nil, fmt.Errorf("lock escalation %w", err)
	}
	return &esc, nil
}

// Escalate создаёт эскалацию, по уведомлению pending на каждого адресата и помечает отчёт Escalated.
// Если отчёт уже в состоянии Escalated, ничего не пишется и возвращается ErrReportAlreadyEscalated.
func (r *EscalationRepository) Escalate(ctx context.Context, esc *models.ReportEscalation, notifications []models.EscalationNotification) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		status, err := lockReport(ctx, tx, esc.ReportID)
		if err != nil {
			return err
		}
		if status == models.EscalationEscalated {
			return ErrReportAlreadyEscalated
		}

		query := `
			INSERT INTO report_escalations (
				report_id, escalated_by_user_id, escalation_reason, escalation_priority,
				immediate_action_required, estimated_resolution_time, additional_notes
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, escalated_at, created_at, updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			esc.ReportID,
			esc.EscalatedByUserID,
			esc.EscalationReason,
			esc.EscalationPriority,
			esc.ImmediateActionRequired,
			esc.EstimatedResolutionTime,
			esc.AdditionalNotes,
		).Scan(&esc.ID, &esc.EscalatedAt, &esc.CreatedAt, &esc.UpdatedAt); err != nil {
			if common.IsUniqueViolation(err) {
				return ErrReportAlreadyEscalated
			}
			return fmt.Errorf("escalation repository: insert %w", err)
		}

		inserter := common.NewBatchInserter(tx, `
			INSERT INTO escalation_notifications (id, escalation_id, user_id, notification_type, status, metadata, created_at, updated_at)
		`, 8, 100)
		now := esc.CreatedAt
		for i := range notifications {
			n := &notifications[i]
			n.ID = uuid.New()
			n.EscalationID = esc.ID
			n.Status = models.NotificationPending
			n.CreatedAt, n.UpdatedAt = now, now
			if err := inserter.Add(ctx, n.ID, n.EscalationID, n.UserID, n.NotificationType, n.Status,
				common.JSONValue(n.Metadata), n.CreatedAt, n.UpdatedAt); err != nil {
				return fmt.Errorf("escalation repository: notifications %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return fmt.Errorf("escalation repository: notifications %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reports SET is_escalated = TRUE, escalation_status = $2, updated_at = NOW()
			WHERE id = $1
		`, esc.ReportID, models.EscalationEscalated); err != nil {
			return fmt.Errorf("escalation repository: mark report %w", err)
		}
		return nil
	})
}

// Resolve закрывает эскалацию целиком: время, автор, заметки и действие пишутся одной командой.
// Когда у отчёта не остаётся открытых эскалаций, он переходит в Resolved и снимается флаг is_escalated.
func (r *EscalationRepository) Resolve(ctx context.Context, escalationID uuid.UUID, res models.EscalationResolution) (*models.ReportEscalation, error) {
	var resolved *models.ReportEscalation
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var reportID uuid.UUID
		if err := tx.GetContext(ctx, &reportID, `SELECT report_id FROM report_escalations WHERE id = $1`, escalationID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEscalationNotFound
			}
			return fmt.Errorf("escalation repository: resolve lookup %w", err)
		}
		if _, err := lockReport(ctx, tx, reportID); err != nil {
			return err
		}
		esc, err := lockEscalation(ctx, tx, escalationID)
		if err != nil {
			return err
		}
		if esc.IsResolved() {
			return ErrEscalationAlreadyResolved
		}

		if err := tx.QueryRowxContext(ctx, `
			UPDATE report_escalations
			SET resolved_at = $2, resolved_by_user_id = $3, resolution_notes = $4, resolved_by_action = $5, updated_at = NOW()
			WHERE id = $1 AND resolved_at IS NULL
			RETURNING updated_at
		`, escalationID, res.ResolvedAt, res.ResolvedBy, res.Notes, res.Action).Scan(&esc.UpdatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEscalationAlreadyResolved
			}
			return fmt.Errorf("escalation repository: resolve %w", err)
		}
		esc.ResolvedAt = &res.ResolvedAt
		esc.ResolvedByUserID = &res.ResolvedBy
		esc.ResolutionNotes = &res.Notes
		esc.ResolvedByAction = res.Action

		newValues, err := json.Marshal(map[string]interface{}{
			"resolved_at":        res.ResolvedAt,
			"resolved_by_action": res.Action,
		})
		if err != nil {
			return fmt.Errorf("escalation repository: resolution values %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO escalation_updates (escalation_id, user_id, update_type, update_content, new_values, is_internal)
			VALUES ($1, $2, $3, $4, $5, FALSE)
		`, escalationID, res.ResolvedBy, models.UpdateResolution, res.Notes, string(newValues)); err != nil {
			return fmt.Errorf("escalation repository: resolution update %w", err)
		}

		var open int
		if err := tx.GetContext(ctx, &open, `
			SELECT COUNT(*) FROM report_escalations WHERE report_id = $1 AND resolved_at IS NULL
		`, reportID); err != nil {
			return fmt.Errorf("escalation repository: count open %w", err)
		}
		if open == 0 {
			if _, err := tx.ExecContext(ctx, `
				UPDATE reports SET is_escalated = FALSE, escalation_status = $2, updated_at = NOW()
				WHERE id = $1
			`, reportID, models.EscalationResolved); err != nil {
				return fmt.Errorf("escalation repository: mark report resolved %w", err)
			}
		}

		resolved = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// Reassign переводит активное назначение в reassigned, создаёт новое и пишет запись в журнал.
func (r *EscalationRepository) Reassign(ctx context.Context, assignment *models.EscalationAssignment) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockEscalation(ctx, tx, assignment.EscalationID); err != nil {
			return err
		}

		var previous []uuid.UUID
		if err := tx.SelectContext(ctx, &previous, `
			UPDATE escalation_assignments SET status = $2, updated_at = NOW()
			WHERE escalation_id = $1 AND status IN ($3, $4)
			RETURNING assigned_to
		`, assignment.EscalationID, models.AssignmentReassigned, models.AssignmentAssigned, models.AssignmentInProgress); err != nil {
			return fmt.Errorf("escalation repository: close assignments %w", err)
		}

		assignment.Status = models.AssignmentAssigned
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO escalation_assignments (escalation_id, assigned_to, assigned_by, status, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, assigned_at, created_at, updated_at
		`, assignment.EscalationID, assignment.AssignedTo, assignment.AssignedBy, assignment.Status, assignment.Notes,
		).Scan(&assignment.ID, &assignment.AssignedAt, &assignment.CreatedAt, &assignment.UpdatedAt); err != nil {
			return fmt.Errorf("escalation repository: insert assignment %w", err)
		}

		prev, err := json.Marshal(map[string]interface{}{"assigned_to": previous})
		if err != nil {
			return fmt.Errorf("escalation repository: assignment values %w", err)
		}
		next, err := json.Marshal(map[string]interface{}{"assigned_to": assignment.AssignedTo})
		if err != nil {
			return fmt.Errorf("escalation repository: assignment values %w", err)
		}
		content := "Эскалация переназначена"
		if assignment.Notes != nil && *assignment.Notes != "" {
			content = *assignment.Notes
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO escalation_updates (escalation_id, user_id, update_type, update_content, previous_values, new_values, is_internal)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		`, assignment.EscalationID, assignment.AssignedBy, models.UpdateAssignment, content, string(prev), string(next)); err != nil {
			return fmt.Errorf("escalation repository: assignment update %w", err)
		}
		return nil
	})
}

// AddUpdate дописывает запись в журнал. При newPriority меняет приоритет эскалации
// и сохраняет прежнее и новое значения.
func (r *EscalationRepository) AddUpdate(ctx context.Context, upd *models.EscalationUpdate, newPriority *string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		esc, err := lockEscalation(ctx, tx, upd.EscalationID)
		if err != nil {
			return err
		}

		if newPriority != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE report_escalations SET escalation_priority = $2, updated_at = NOW() WHERE id = $1
			`, upd.EscalationID, *newPriority); err != nil {
				return fmt.Errorf("escalation repository: change priority %w", err)
			}
			if upd.PreviousValues, err = json.Marshal(map[string]string{"escalation_priority": esc.EscalationPriority}); err != nil {
				return fmt.Errorf("escalation repository: priority values %w", err)
			}
			if upd.NewValues, err = json.Marshal(map[string]string{"escalation_priority": *newPriority}); err != nil {
				return fmt.Errorf("escalation repository: priority values %w", err)
			}
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO escalation_updates (escalation_id, user_id, update_type, update_content, previous_values, new_values, is_internal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`, upd.EscalationID, upd.UserID, upd.UpdateType, upd.UpdateContent,
			common.JSONValue(upd.PreviousValues), common.JSONValue(upd.NewValues), upd.IsInternal,
		).Scan(&upd.ID, &upd.CreatedAt, &upd.UpdatedAt); err != nil {
			return fmt.Errorf("escalation repository: insert update %w", err)
		}
		return nil
	})
}

// GetByID возвращает эскалацию.
func (r *EscalationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReportEscalation, error) {
	return common.GetByID[models.ReportEscalation](ctx, r.db, "report_escalations", id, ErrEscalationNotFound)
}

// ListByReport возвращает эскалации отчёта, последние первыми.
func (r *EscalationRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ReportEscalation, error) {
	var list []models.ReportEscalation
	if err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM report_escalations WHERE report_id = $1 ORDER BY escalated_at DESC
	`, reportID); err != nil {
		return nil, fmt.Errorf("escalation repository: list by report %w", err)
	}
	return list, nil
}

// Details собирает эскалацию с уведомлениями, журналом и назначениями.
func (r *EscalationRepository) Details(ctx context.Context, id uuid.UUID) (*models.EscalationDetails, error) {
	esc, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details := &models.EscalationDetails{ReportEscalation: esc}

	if err := r.db.SelectContext(ctx, &details.Notifications, `
		SELECT * FROM escalation_notifications WHERE escalation_id = $1 ORDER BY created_at ASC
	`, id); err != nil {
		return nil, fmt.Errorf("escalation repository: notifications %w", err)
	}
	if err := r.db.SelectContext(ctx, &details.Updates, `
		SELECT * FROM escalation_updates WHERE escalation_id = $1 ORDER BY created_at ASC
	`, id); err != nil {
		return nil, fmt.Errorf("escalation repository: updates %w", err)
	}
	if err := r.db.SelectContext(ctx, &details.Assignments, `
		SELECT * FROM escalation_assignments WHERE escalation_id = $1 ORDER BY assigned_at DESC
	`, id); err != nil {
		return nil, fmt.Errorf("escalation repository: assignments %w", err)
	}
	return details, nil
}

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

var (
	// ErrReportNotFound отчёт не найден.
	ErrReportNotFound = errors.New("report not found")
	// ErrEscalationStateConflict переход escalation_status из текущего состояния запрещён.
	ErrEscalationStateConflict = errors.New("escalation state conflict")
)

// ReportRepository работает с таблицей reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository создаёт экземпляр.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create сохраняет новый отчёт. escalation_status всегда начинается с Not Required.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (
			report_type, incident_type, description, date_of_incident, location_lat, location_long,
			severity, industry, reporter_name, reporter_contact, status, assigned_to, organization_id,
			reported_by_user_id, cause_of_death, regulation_class_broken, feedback_given, source, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, is_escalated, escalation_status, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		report.ReportType,
		report.IncidentType,
		report.Description,
		report.DateOfIncident,
		report.LocationLat,
		report.LocationLong,
		report.Severity,
		report.Industry,
		report.ReporterName,
		report.ReporterContact,
		report.Status,
		report.AssignedTo,
		report.OrganizationID,
		report.ReportedByUserID,
		report.CauseOfDeath,
		report.RegulationClassBroken,
		report.FeedbackGiven,
		report.Source,
		common.JSONValue(report.Metadata),
	).Scan(&report.ID, &report.IsEscalated, &report.EscalationStatus, &report.CreatedAt, &report.UpdatedAt); err != nil {
		return fmt.Errorf("report repository: create %w", err)
	}
	return nil
}

// GetByID возвращает отчёт.
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	return common.GetByID[models.Report](ctx, r.db, "reports", id, ErrReportNotFound)
}

// Update перезаписывает редактируемые поля. Флаги эскалации меняет только EscalationRepository.
func (r *ReportRepository) Update(ctx context.Context, report *models.Report) error {
	return r.update(ctx, r.db, report)
}

// UpdateStatus меняет статус и назначение отчёта; при markRequired в той же транзакции
// переводит escalation_status в Required.
func (r *ReportRepository) UpdateStatus(ctx context.Context, report *models.Report, markRequired bool) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if markRequired {
			res, err := tx.ExecContext(ctx, `
				UPDATE reports SET escalation_status = $2, updated_at = NOW()
				WHERE id = $1 AND escalation_status IN ($3, $4)
			`, report.ID, models.EscalationRequired, models.EscalationNotRequired, models.EscalationResolved)
			if err != nil {
				return fmt.Errorf("report repository: mark required %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrEscalationStateConflict
			}
		}
		return r.update(ctx, tx, report)
	})
}

func (r *ReportRepository) update(ctx context.Context, q sqlx.QueryerContext, report *models.Report) error {
	query := `
		UPDATE reports SET
			report_type = $2, incident_type = $3, description = $4, date_of_incident = $5,
			location_lat = $6, location_long = $7, severity = $8, industry = $9,
			reporter_name = $10, reporter_contact = $11, status = $12, assigned_to = $13,
			organization_id = $14, cause_of_death = $15, regulation_class_broken = $16,
			feedback_given = $17, updated_at = NOW()
		WHERE id = $1
		RETURNING is_escalated, escalation_status, updated_at
	`
	if err := q.QueryRowxContext(
		ctx, query,
		report.ID,
		report.ReportType,
		report.IncidentType,
		report.Description,
		report.DateOfIncident,
		report.LocationLat,
		report.LocationLong,
		report.Severity,
		report.Industry,
		report.ReporterName,
		report.ReporterContact,
		report.Status,
		report.AssignedTo,
		report.OrganizationID,
		report.CauseOfDeath,
		report.RegulationClassBroken,
		report.FeedbackGiven,
	).Scan(&report.IsEscalated, &report.EscalationStatus, &report.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReportNotFound
		}
		return fmt.Errorf("report repository: update %w", err)
	}
	return nil
}

// MarkEscalationRequired переводит Not Required или Resolved в Required.
func (r *ReportRepository) MarkEscalationRequired(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.GetContext(ctx, &report, `
		UPDATE reports SET escalation_status = $2, updated_at = NOW()
		WHERE id = $1 AND escalation_status IN ($3, $4)
		RETURNING *
	`, id, models.EscalationRequired, models.EscalationNotRequired, models.EscalationResolved)
	if err == nil {
		return &report, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report repository: mark required %w", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrEscalationStateConflict
}

// Delete удаляет отчёт; вложения, эскалации и уведомления удаляются каскадом.
func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("report repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReportNotFound
	}
	return nil
}

func reportConditions(f models.ReportFilter) *common.Placeholder {
	p := &common.Placeholder{}
	if f.Search != "" {
		p.Add(`(report_type ILIKE ? OR description ILIKE ? OR incident_type ILIKE ?
			OR reporter_name ILIKE ? OR reporter_contact ILIKE ?)`, "%"+f.Search+"%")
	}
	if f.Status != "" {
		p.Add("status = ?", f.Status)
	}
	if f.Severity != "" {
		p.Add("severity = ?", f.Severity)
	}
	if f.ReportType != "" {
		p.Add("report_type = ?", f.ReportType)
	}
	if f.Industry != "" {
		p.Add("industry = ?", f.Industry)
	}
	if f.Escalated != nil {
		p.Add("is_escalated = ?", *f.Escalated)
	}
	if f.DateFrom != nil {
		p.Add("date_of_incident >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		p.Add("date_of_incident <= ?", *f.DateTo)
	}
	if f.OrganizationID != nil {
		p.Add("organization_id = ?", *f.OrganizationID)
	}
	return p
}

// List возвращает страницу отчётов по фильтру, новые первыми, и общее число.
func (r *ReportRepository) List(ctx context.Context, f models.ReportFilter) ([]models.Report, int, error) {
	p := reportConditions(f)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reports`+p.Where(), p.Args()...); err != nil {
		return nil, 0, fmt.Errorf("report repository: count %w", err)
	}

	query := `SELECT * FROM reports` + p.Where() + ` ORDER BY created_at DESC`
	args := p.Args()
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", p.Next(), p.Next()+1)
		args = append(args, f.Limit, f.Offset)
	}

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("report repository: list %w", err)
	}
	return reports, total, nil
}

// Stats считает отчёты по статусу, тяжести и числу эскалированных.
func (r *ReportRepository) Stats(ctx context.Context, organizationID *uuid.UUID) (*models.ReportStats, error) {
	p := reportConditions(models.ReportFilter{OrganizationID: organizationID})
	stats := &models.ReportStats{ByStatus: map[string]int{}, BySeverity: map[string]int{}}

	if err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_escalated) FROM reports`+p.Where(), p.Args()...,
	).Scan(&stats.Total, &stats.Escalated); err != nil {
		return nil, fmt.Errorf("report repository: stats totals %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"status", stats.ByStatus},
		{"severity", stats.BySeverity},
	}
	for _, g := range groups {
		var rows []models.CountRow
		query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM reports%s GROUP BY %s`, g.column, p.Where(), g.column)
		if err := r.db.SelectContext(ctx, &rows, query, p.Args()...); err != nil {
			return nil, fmt.Errorf("report repository: stats by %s %w", g.column, err)
		}
		for _, row := range rows {
			key := "Unspecified"
			if row.Key != nil {
				key = *row.Key
			}
			g.into[key] += row.Count
		}
	}
	return stats, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

// ErrUploadNotFound вложение не найдено.
var ErrUploadNotFound = errors.New("upload not found")

// UploadRepository работает с таблицей report_uploads.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository создаёт экземпляр.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create сохраняет запись о файле.
func (r *UploadRepository) Create(ctx context.Context, upload *models.ReportUpload) error {
	query := `
		INSERT INTO report_uploads (report_id, file_url, storage_path, file_type, original_filename, file_size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		upload.ReportID,
		upload.FileURL,
		upload.StoragePath,
		upload.FileType,
		upload.OriginalFilename,
		upload.FileSize,
		upload.UploadedBy,
	).Scan(&upload.ID, &upload.CreatedAt, &upload.UpdatedAt); err != nil {
		return fmt.Errorf("upload repository: create %w", err)
	}
	return nil
}

// GetByID возвращает вложение отчёта.
func (r *UploadRepository) GetByID(ctx context.Context, reportID, uploadID uuid.UUID) (*models.ReportUpload, error) {
	var upload models.ReportUpload
	err := r.db.GetContext(ctx, &upload, `SELECT * FROM report_uploads WHERE id = $1 AND report_id = $2`, uploadID, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("upload repository: get by id %w", err)
	}
	return &upload, nil
}

// ListByReport возвращает вложения отчёта в порядке загрузки.
func (r *UploadRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ReportUpload, error) {
	var uploads []models.ReportUpload
	if err := r.db.SelectContext(ctx, &uploads, `
		SELECT * FROM report_uploads WHERE report_id = $1 ORDER BY created_at ASC
	`, reportID); err != nil {
		return nil, fmt.Errorf("upload repository: list by report %w", err)
	}
	return uploads, nil
}

// CountByReport число вложений отчёта.
func (r *UploadRepository) CountByReport(ctx context.Context, reportID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM report_uploads WHERE report_id = $1`, reportID); err != nil {
		return 0, fmt.Errorf("upload repository: count %w", err)
	}
	return n, nil
}

// Delete удаляет запись о файле.
func (r *UploadRepository) Delete(ctx context.Context, uploadID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM report_uploads WHERE id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("upload repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUploadNotFound
	}
	return nil
}

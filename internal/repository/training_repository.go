package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository/common"
)

var (
	// ErrTrainingNotFound курс не найден.
	ErrTrainingNotFound = errors.New("training not found")
	// ErrTrainingNameTaken курс с таким названием уже есть.
	ErrTrainingNameTaken = errors.New("training name taken")
	// ErrTrainingHasEnrollments на курс записаны пользователи, удалять нельзя.
	ErrTrainingHasEnrollments = errors.New("training has enrollments")
	// ErrEnrollmentNotFound запись на курс не найдена.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrAlreadyEnrolled пользователь уже записан на курс.
	ErrAlreadyEnrolled = errors.New("already enrolled")
)

// TrainingRepository работает с таблицами trainings и user_trainings.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository создаёт экземпляр.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

const trainingSelect = `
	SELECT t.id, t.name, t.description, t.industry, t.created_at, t.updated_at,
		(SELECT COUNT(*) FROM user_trainings ut WHERE ut.training_id = t.id) AS enrolled_count
	FROM trainings t`

// Create сохраняет курс.
func (r *TrainingRepository) Create(ctx context.Context, t *models.Training) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO trainings (name, description, industry)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, t.Name, t.Description, t.Industry).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return ErrTrainingNameTaken
		}
		return fmt.Errorf("training repository: create %w", err)
	}
	return nil
}

// Update перезаписывает поля курса.
func (r *TrainingRepository) Update(ctx context.Context, t *models.Training) error {
	if err := r.db.QueryRowxContext(ctx, `
		UPDATE trainings SET name = $2, description = $3, industry = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Name, t.Description, t.Industry).Scan(&t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTrainingNotFound
		}
		if common.IsUniqueViolation(err) {
			return ErrTrainingNameTaken
		}
		return fmt.Errorf("training repository: update %w", err)
	}
	return nil
}

// GetByID возвращает курс с числом записавшихся.
func (r *TrainingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Training, error) {
	var t models.Training
	if err := r.db.GetContext(ctx, &t, trainingSelect+` WHERE t.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrainingNotFound
		}
		return nil, fmt.Errorf("training repository: get by id %w", err)
	}
	return &t, nil
}

// List ищет курсы по названию или описанию и отрасли.
func (r *TrainingRepository) List(ctx context.Context, search, industry string, limit, offset int) ([]models.Training, int, error) {
	var p common.Placeholder
	if search != "" {
		p.Add("(t.name ILIKE ? OR t.description ILIKE ?)", "%"+search+"%")
	}
	if industry != "" {
		p.Add("t.industry = ?", industry)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM trainings t`+p.Where(), p.Args()...); err != nil {
		return nil, 0, fmt.Errorf("training repository: count %w", err)
	}

	query := trainingSelect + p.Where() +
		fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d", p.Next(), p.Next()+1)
	var list []models.Training
	if err := r.db.SelectContext(ctx, &list, query, append(p.Args(), limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("training repository: list %w", err)
	}
	return list, total, nil
}

// Delete удаляет курс, если на него никто не записан.
func (r *TrainingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM trainings t
		WHERE t.id = $1 AND NOT EXISTS (SELECT 1 FROM user_trainings ut WHERE ut.training_id = t.id)
	`, id)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return ErrTrainingHasEnrollments
		}
		return fmt.Errorf("training repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrTrainingHasEnrollments
}

// DeleteMany удаляет курсы без записей и возвращает число удалённых.
func (r *TrainingRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM trainings t
		WHERE t.id = ANY($1) AND NOT EXISTS (SELECT 1 FROM user_trainings ut WHERE ut.training_id = t.id)
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, fmt.Errorf("training repository: delete many %w", err)
	}
	return res.RowsAffected()
}

// UpdateIndustry массово меняет отрасль курсов.
func (r *TrainingRepository) UpdateIndustry(ctx context.Context, ids []uuid.UUID, industry string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trainings SET industry = $2, updated_at = NOW() WHERE id = ANY($1)
	`, pq.Array(uuidStrings(ids)), industry)
	if err != nil {
		return 0, fmt.Errorf("training repository: update industry %w", err)
	}
	return res.RowsAffected()
}

// EnrollmentStats считает записи на курс по статусам.
func (r *TrainingRepository) EnrollmentStats(ctx context.Context, trainingID uuid.UUID) (*models.EnrollmentStats, error) {
	var stats models.EnrollmentStats
	if err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total_enrolled,
			COUNT(*) FILTER (WHERE status = 'Completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'Pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'In Progress') AS in_progress
		FROM user_trainings WHERE training_id = $1
	`, trainingID); err != nil {
		return nil, fmt.Errorf("training repository: enrollment stats %w", err)
	}
	return &stats, nil
}

// EnrollmentsByOrganization число записей на курс по организациям.
func (r *TrainingRepository) EnrollmentsByOrganization(ctx context.Context, trainingID uuid.UUID) ([]models.OrganizationEnrollment, error) {
	var rows []models.OrganizationEnrollment
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT COALESCE(o.name, 'Без организации') AS organization, COUNT(*) AS count
		FROM user_trainings ut
		LEFT JOIN organizations o ON o.id = ut.organization_id
		WHERE ut.training_id = $1
		GROUP BY o.name
		ORDER BY count DESC
	`, trainingID); err != nil {
		return nil, fmt.Errorf("training repository: by organization %w", err)
	}
	return rows, nil
}

// Statistics общая статистика по курсам и записям.
func (r *TrainingRepository) Statistics(ctx context.Context) (*models.TrainingStatistics, error) {
	var s models.TrainingStatistics
	if err := r.db.GetContext(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM trainings) AS total_trainings,
			(SELECT COUNT(DISTINCT industry) FROM trainings WHERE industry IS NOT NULL) AS industries_covered,
			(SELECT COUNT(*) FROM user_trainings) AS total_enrollments,
			(SELECT COUNT(*) FROM user_trainings WHERE status = 'Completed') AS completed_trainings
	`); err != nil {
		return nil, fmt.Errorf("training repository: statistics %w", err)
	}
	return &s, nil
}

// Enroll записывает пользователя на курс.
func (r *TrainingRepository) Enroll(ctx context.Context, e *models.Enrollment) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO user_trainings (user_id, organization_id, training_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, e.UserID, e.OrganizationID, e.TrainingID, e.Status).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return ErrAlreadyEnrolled
		}
		if common.IsForeignKeyViolation(err) {
			return ErrTrainingNotFound
		}
		return fmt.Errorf("training repository: enroll %w", err)
	}
	return nil
}

// Unenroll удаляет запись пользователя на курс.
func (r *TrainingRepository) Unenroll(ctx context.Context, trainingID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_trainings WHERE training_id = $1 AND user_id = $2`, trainingID, userID)
	if err != nil {
		return fmt.Errorf("training repository: unenroll %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// UpdateEnrollmentStatus меняет статус записи; completedAt nil очищает дату завершения.
func (r *TrainingRepository) UpdateEnrollmentStatus(ctx context.Context, trainingID, userID uuid.UUID, status string, completedAt *time.Time) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := r.db.GetContext(ctx, &e, `
		UPDATE user_trainings SET status = $3, completed_at = $4, updated_at = NOW()
		WHERE training_id = $1 AND user_id = $2
		RETURNING *
	`, trainingID, userID, status, completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("training repository: update enrollment %w", err)
	}
	return &e, nil
}

// ListEnrollments возвращает записи на курс.
func (r *TrainingRepository) ListEnrollments(ctx context.Context, trainingID uuid.UUID) ([]models.Enrollment, error) {
	var list []models.Enrollment
	if err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM user_trainings WHERE training_id = $1 ORDER BY created_at DESC
	`, trainingID); err != nil {
		return nil, fmt.Errorf("training repository: list enrollments %w", err)
	}
	return list, nil
}

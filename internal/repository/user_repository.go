package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository/common"
)

var (
	// ErrUserNotFound возвращается, когда запись пользователя не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrMembershipNotFound у пользователя нет строки в organization_users.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrEmailTaken email уже занят другим пользователем.
	ErrEmailTaken = errors.New("email already taken")
	// ErrUserHasHistory на пользователя ссылаются эскалации или журнал.
	ErrUserHasHistory = errors.New("user has escalation history")
)

// UserRepository отвечает за таблицы users и organization_users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, phone, address, password_hash, email_verified_at, last_login_at, created_at, updated_at`

// Create создаёт пользователя и его членство в одной транзакции.
func (r *UserRepository) Create(ctx context.Context, user *models.User, membership *models.Membership) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (first_name, last_name, email, phone, address, password_hash)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			user.FirstName, user.LastName, user.Email, user.Phone, user.Address, user.PasswordHash,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			if common.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("user repository: create %w", err)
		}

		membership.UserID = user.ID
		return upsertMembership(ctx, tx, membership)
	})
}

// Update обновляет данные пользователя и upsert'ом его членство.
func (r *UserRepository) Update(ctx context.Context, user *models.User, membership *models.Membership) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE users
			SET first_name = $2, last_name = $3, email = $4, phone = $5, address = $6,
				password_hash = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			user.ID, user.FirstName, user.LastName, user.Email, user.Phone, user.Address, user.PasswordHash,
		).Scan(&user.UpdatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			if common.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("user repository: update %w", err)
		}

		if membership == nil {
			return nil
		}
		membership.UserID = user.ID
		return upsertMembership(ctx, tx, membership)
	})
}

// UpsertMembership записывает членство одной командой INSERT ... ON CONFLICT (user_id).
func (r *UserRepository) UpsertMembership(ctx context.Context, membership *models.Membership) error {
	return upsertMembership(ctx, r.db, membership)
}

func upsertMembership(ctx context.Context, q sqlx.QueryerContext, m *models.Membership) error {
	query := `
		INSERT INTO organization_users (user_id, organization_id, role, is_active, is_ministry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET organization_id = EXCLUDED.organization_id,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			is_ministry = EXCLUDED.is_ministry,
			updated_at = NOW()
		RETURNING id, disabled_at, created_at, updated_at
	`
	if err := q.QueryRowxContext(
		ctx, query,
		m.UserID, m.OrganizationID, m.Role, m.IsActive, m.IsMinistry,
	).Scan(&m.ID, &m.DisabledAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: upsert membership %w", err)
	}
	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// GetMembership возвращает членство пользователя.
func (r *UserRepository) GetMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	return common.GetByField[models.Membership](ctx, r.db, "organization_users", "user_id", userID, ErrMembershipNotFound)
}

// ExistingIDs возвращает те id из списка, которым соответствует пользователь.
func (r *UserRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uuid.UUID
	if err := r.db.SelectContext(ctx, &found, `SELECT id FROM users WHERE id = ANY($1)`, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("user repository: existing ids %w", err)
	}
	return found, nil
}

// UpdateLastLoginAt обновляет время последнего входа пользователя.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: update last login at %w", err)
	}
	return nil
}

// Delete удаляет пользователя; членство удаляется каскадом.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return ErrUserHasHistory
		}
		return fmt.Errorf("user repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ToggleActive переключает флаг активности и возвращает новое значение.
func (r *UserRepository) ToggleActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	var active bool
	err := r.db.GetContext(ctx, &active, `
		UPDATE organization_users
		SET is_active = NOT is_active, updated_at = NOW()
		WHERE user_id = $1
		RETURNING is_active
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrMembershipNotFound
		}
		return false, fmt.Errorf("user repository: toggle active %w", err)
	}
	return active, nil
}

// SetActive массово включает или выключает пользователей.
func (r *UserRepository) SetActive(ctx context.Context, userIDs []uuid.UUID, active bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_users SET is_active = $2, updated_at = NOW()
		WHERE user_id = ANY($1)
	`, pq.Array(uuidStrings(userIDs)), active)
	if err != nil {
		return 0, fmt.Errorf("user repository: set active %w", err)
	}
	return res.RowsAffected()
}

// DeleteMany массово удаляет пользователей.
func (r *UserRepository) DeleteMany(ctx context.Context, userIDs []uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.Array(uuidStrings(userIDs)))
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return 0, ErrUserHasHistory
		}
		return 0, fmt.Errorf("user repository: delete many %w", err)
	}
	return res.RowsAffected()
}

// Search ищет членства с данными пользователя и названием организации.
func (r *UserRepository) Search(ctx context.Context, f models.MemberFilter) ([]models.MemberView, int, error) {
	var p common.Placeholder
	if f.Search != "" {
		p.Add("(u.first_name ILIKE ? OR u.last_name ILIKE ? OR u.email ILIKE ?)", "%"+f.Search+"%")
	}
	if f.Role != "" {
		p.Add("ou.role = ?", f.Role)
	}
	if f.OrganizationID != nil {
		p.Add("ou.organization_id = ?", *f.OrganizationID)
	}
	switch f.Status {
	case "active":
		p.Add("ou.is_active = TRUE AND ou.disabled_at IS NULL")
	case "inactive":
		p.Add("ou.is_active = FALSE")
	case "disabled":
		p.Add("ou.disabled_at IS NOT NULL")
	}
	if f.IsMinistry != nil {
		p.Add("ou.is_ministry = ?", *f.IsMinistry)
	}

	from := `
		FROM organization_users ou
		JOIN users u ON u.id = ou.user_id
		LEFT JOIN organizations o ON o.id = ou.organization_id
	` + p.Where()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) `+from, p.Args()...); err != nil {
		return nil, 0, fmt.Errorf("user repository: count members %w", err)
	}

	query := `
		SELECT ou.id, ou.user_id, ou.organization_id, ou.role, ou.is_active, ou.is_ministry,
			ou.disabled_at, ou.created_at, ou.updated_at,
			u.first_name, u.last_name, u.email, o.name AS organization_name
	` + from + fmt.Sprintf(" ORDER BY ou.created_at DESC LIMIT $%d OFFSET $%d", p.Next(), p.Next()+1)

	args := append(p.Args(), f.Limit, f.Offset)
	var members []models.MemberView
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, fmt.Errorf("user repository: search members %w", err)
	}
	return members, total, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

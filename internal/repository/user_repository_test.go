package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

func TestUpsertMembership_SingleStatementOnConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	userID, orgID, rowID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO organization_users .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(userID, orgID, models.RoleSupervisor, true, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "disabled_at", "created_at", "updated_at"}).
			AddRow(rowID.String(), nil, now, now))

	m := &models.Membership{UserID: userID, OrganizationID: &orgID, Role: models.RoleSupervisor, IsActive: true}
	require.NoError(t, repo.UpsertMembership(context.Background(), m))
	assert.Equal(t, rowID, m.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_EmailTaken(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Email: "a@b.c"}, &models.Membership{Role: models.RoleEmployee})
	assert.ErrorIs(t, err, ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_MembershipInSameTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(userID.String(), now, now))
	mock.ExpectQuery(`INSERT INTO organization_users`).
		WithArgs(userID, nil, models.RoleAdmin, true, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "disabled_at", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), nil, now, now))
	mock.ExpectCommit()

	user := &models.User{FirstName: "Анна", LastName: "Петрова", Email: "anna@example.com"}
	m := &models.Membership{Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), user, m))
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, userID, m.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT id FROM users WHERE id = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()))

	found, err := repo.ExistingIDs(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationTransition_GuardedUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)
	id, owner := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`UPDATE escalation_notifications .* WHERE id = \$1 AND status = ANY\(\$5\)`).
		WithArgs(id, models.NotificationRead, nil, now, sqlmock.AnyArg(), owner).
		WillReturnRows(sqlmock.NewRows([]string{"id", "escalation_id", "user_id", "notification_type", "status", "read_at"}).
			AddRow(id.String(), uuid.New().String(), owner.String(), models.NotificationEmail, models.NotificationRead, now))

	n, err := repo.Transition(context.Background(), id, &owner, models.NotificationRead, now)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRead, n.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationTransition_BackwardRejected(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)
	id, owner := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`UPDATE escalation_notifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM escalation_notifications WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "escalation_id", "user_id", "notification_type", "status"}).
			AddRow(id.String(), uuid.New().String(), owner.String(), models.NotificationEmail, models.NotificationRead))

	_, err := repo.Transition(context.Background(), id, nil, models.NotificationSent, now)
	assert.ErrorIs(t, err, ErrInvalidNotificationTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationTransition_UnknownTargetRejectedWithoutQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)

	_, err := repo.Transition(context.Background(), uuid.New(), nil, models.NotificationPending, time.Now())
	assert.ErrorIs(t, err, ErrInvalidNotificationTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_ReferencedByEscalations(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserHasHistory)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteManyUsers_ReferencedByEscalations(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`DELETE FROM users WHERE id = ANY\(\$1\)`).
		WillReturnError(&pq.Error{Code: "23503"})

	n, err := repo.DeleteMany(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	assert.ErrorIs(t, err, ErrUserHasHistory)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/repository"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.EscalationNotification, int, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	return args.Get(0).([]models.EscalationNotification), args.Int(1), args.Error(2)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationRepo) Transition(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, to string, at time.Time) (*models.EscalationNotification, error) {
	args := m.Called(ctx, id, ownerID, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscalationNotification), args.Error(1)
}

func TestNotificationService_ListMine_DefaultPage(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo)
	actor := Identity{UserID: uuid.New(), Role: models.RoleEmployee}

	repo.On("ListByUser", mock.Anything, actor.UserID, NotificationPageSize, 0, true).
		Return([]models.EscalationNotification{{ID: uuid.New()}}, 1, nil)

	list, total, err := svc.ListMine(context.Background(), actor, 0, -5, true)

	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	repo.AssertExpectations(t)
}

func TestNotificationService_MarkRead_OnlyOwnNotification(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo)
	actor := Identity{UserID: uuid.New(), Role: models.RoleEmployee}
	id := uuid.New()

	repo.On("Transition", mock.Anything, id, &actor.UserID, models.NotificationRead).
		Return(nil, repository.ErrNotificationNotFound)

	_, err := svc.MarkRead(context.Background(), actor, id)

	assert.True(t, apperror.IsNotFound(err))
}

func TestNotificationService_MarkRead_FromPendingRejected(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo)
	actor := Identity{UserID: uuid.New(), Role: models.RoleEmployee}
	id := uuid.New()

	repo.On("Transition", mock.Anything, id, mock.Anything, models.NotificationRead).
		Return(nil, repository.ErrInvalidNotificationTransition)

	_, err := svc.MarkRead(context.Background(), actor, id)

	assert.ErrorIs(t, err, apperror.ErrInvalidNotificationTransition)
}

func TestNotificationService_RecordDelivery(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		repoErr error
		check   func(t *testing.T, err error)
	}{
		{"sent accepted", models.NotificationSent, nil, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"failed accepted", models.NotificationFailed, nil, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"read is not a delivery status", models.NotificationRead, nil, func(t *testing.T, err error) { assert.True(t, apperror.IsValidation(err)) }},
		{"pending is not a delivery status", models.NotificationPending, nil, func(t *testing.T, err error) { assert.True(t, apperror.IsValidation(err)) }},
		{"regression rejected", models.NotificationSent, repository.ErrInvalidNotificationTransition, func(t *testing.T, err error) { assert.True(t, apperror.IsConflict(err)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockNotificationRepo)
			svc := NewNotificationService(repo)
			id := uuid.New()
			if tt.repoErr != nil {
				repo.On("Transition", mock.Anything, id, (*uuid.UUID)(nil), tt.status).Return(nil, tt.repoErr)
			} else {
				repo.On("Transition", mock.Anything, id, (*uuid.UUID)(nil), tt.status).
					Return(&models.EscalationNotification{ID: id, Status: tt.status}, nil).Maybe()
			}

			_, err := svc.RecordDelivery(context.Background(), id, tt.status)
			tt.check(t, err)
		})
	}
}

func TestCanTransitionNotification(t *testing.T) {
	allowed := [][2]string{
		{models.NotificationPending, models.NotificationSent},
		{models.NotificationPending, models.NotificationFailed},
		{models.NotificationSent, models.NotificationRead},
	}
	for _, pair := range allowed {
		assert.True(t, models.CanTransitionNotification(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	rejected := [][2]string{
		{models.NotificationPending, models.NotificationRead},
		{models.NotificationSent, models.NotificationPending},
		{models.NotificationRead, models.NotificationSent},
		{models.NotificationFailed, models.NotificationSent},
		{models.NotificationSent, models.NotificationFailed},
	}
	for _, pair := range rejected {
		assert.False(t, models.CanTransitionNotification(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

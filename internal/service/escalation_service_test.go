package service

import (
	"context"
	"errors"
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

type mockEscalationRepo struct {
	mock.Mock
}

func (m *mockEscalationRepo) Escalate(ctx context.Context, esc *models.ReportEscalation, notifications []models.EscalationNotification) error {
	args := m.Called(ctx, esc, notifications)
	if args.Error(0) == nil {
		esc.ID = uuid.New()
		for i := range notifications {
			notifications[i].ID = uuid.New()
			notifications[i].EscalationID = esc.ID
			notifications[i].Status = models.NotificationPending
		}
	}
	return args.Error(0)
}

func (m *mockEscalationRepo) Resolve(ctx context.Context, id uuid.UUID, res models.EscalationResolution) (*models.ReportEscalation, error) {
	args := m.Called(ctx, id, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReportEscalation), args.Error(1)
}

func (m *mockEscalationRepo) Reassign(ctx context.Context, a *models.EscalationAssignment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockEscalationRepo) AddUpdate(ctx context.Context, upd *models.EscalationUpdate, newPriority *string) error {
	return m.Called(ctx, upd, newPriority).Error(0)
}

func (m *mockEscalationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ReportEscalation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReportEscalation), args.Error(1)
}

func (m *mockEscalationRepo) ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ReportEscalation, error) {
	args := m.Called(ctx, reportID)
	return args.Get(0).([]models.ReportEscalation), args.Error(1)
}

func (m *mockEscalationRepo) Details(ctx context.Context, id uuid.UUID) (*models.EscalationDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscalationDetails), args.Error(1)
}

type mockReportLookup struct {
	mock.Mock
}

func (m *mockReportLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

type mockUserExistence struct {
	mock.Mock
}

func (m *mockUserExistence) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) Push(ctx context.Context, n *models.EscalationNotification) (bool, error) {
	args := m.Called(ctx, n.UserID)
	return args.Bool(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, payload any) error {
	msg := payload.(NotificationMessage)
	return m.Called(ctx, msg.UserID).Error(0)
}

type mockTransitioner struct {
	mock.Mock
}

func (m *mockTransitioner) Transition(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, to string, at time.Time) (*models.EscalationNotification, error) {
	args := m.Called(ctx, id, ownerID, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscalationNotification), args.Error(1)
}

type escalationFixture struct {
	repo      *mockEscalationRepo
	reports   *mockReportLookup
	users     *mockUserExistence
	pusher    *mockPusher
	publisher *mockPublisher
	states    *mockTransitioner
	svc       *EscalationService
	actor     Identity
	report    *models.Report
}

func newEscalationFixture() *escalationFixture {
	f := &escalationFixture{
		repo:      new(mockEscalationRepo),
		reports:   new(mockReportLookup),
		users:     new(mockUserExistence),
		pusher:    new(mockPusher),
		publisher: new(mockPublisher),
		states:    new(mockTransitioner),
		actor:     Identity{UserID: uuid.New(), Role: models.RoleAdmin},
	}
	f.svc = NewEscalationService(f.repo, f.reports, f.users, f.states, f.pusher, f.publisher)
	orgID := uuid.New()
	f.report = &models.Report{
		ID:               uuid.New(),
		OrganizationID:   &orgID,
		Status:           models.ReportStatusPending,
		EscalationStatus: models.EscalationNotRequired,
	}
	f.reports.On("GetByID", mock.Anything, f.report.ID).Return(f.report, nil)
	return f
}

func validEscalateInput(users ...uuid.UUID) EscalateInput {
	return EscalateInput{
		Reason:        "Утечка химикатов на складе номер 3",
		Priority:      models.PriorityHigh,
		NotifyUserIDs: users,
	}
}

func TestEscalationService_Escalate_ValidationBeforeWrite(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name  string
		input EscalateInput
		field string
	}{
		{"short reason", EscalateInput{Reason: "  short  ", Priority: models.PriorityHigh, NotifyUserIDs: []uuid.UUID{userID}}, "escalation_reason"},
		{"bad priority", EscalateInput{Reason: "Достаточно длинная причина", Priority: "Urgent", NotifyUserIDs: []uuid.UUID{userID}}, "escalation_priority"},
		{"no recipients", EscalateInput{Reason: "Достаточно длинная причина", Priority: models.PriorityLow}, "notify_users"},
		{"bad channel", EscalateInput{Reason: "Достаточно длинная причина", Priority: models.PriorityLow, NotifyUserIDs: []uuid.UUID{userID}, NotificationType: "pigeon"}, "notification_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEscalationFixture()
			f.users.On("ExistingIDs", mock.Anything, mock.Anything).Return([]uuid.UUID{userID}, nil).Maybe()

			result, err := f.svc.Escalate(context.Background(), f.actor, f.report.ID, tt.input)

			assert.Nil(t, result)
			require.Error(t, err)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
			assert.Contains(t, appErr.Fields, tt.field)
			f.repo.AssertNotCalled(t, "Escalate", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEscalationService_Escalate_UnknownRecipient(t *testing.T) {
	f := newEscalationFixture()
	known, unknown := uuid.New(), uuid.New()
	f.users.On("ExistingIDs", mock.Anything, []uuid.UUID{known, unknown}).Return([]uuid.UUID{known}, nil)

	_, err := f.svc.Escalate(context.Background(), f.actor, f.report.ID, validEscalateInput(known, unknown))

	assert.True(t, apperror.IsValidation(err))
	f.repo.AssertNotCalled(t, "Escalate", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscalationService_Escalate_AlreadyEscalated(t *testing.T) {
	f := newEscalationFixture()
	f.report.EscalationStatus = models.EscalationEscalated
	userID := uuid.New()
	f.users.On("ExistingIDs", mock.Anything, []uuid.UUID{userID}).Return([]uuid.UUID{userID}, nil)

	_, err := f.svc.Escalate(context.Background(), f.actor, f.report.ID, validEscalateInput(userID))

	assert.ErrorIs(t, err, apperror.ErrReportAlreadyEscalated)
	f.repo.AssertNotCalled(t, "Escalate", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscalationService_Escalate_ConcurrentEscalationConflict(t *testing.T) {
	f := newEscalationFixture()
	userID := uuid.New()
	f.users.On("ExistingIDs", mock.Anything, []uuid.UUID{userID}).Return([]uuid.UUID{userID}, nil)
	f.repo.On("Escalate", mock.Anything, mock.Anything, mock.Anything).Return(repository.ErrReportAlreadyEscalated)

	_, err := f.svc.Escalate(context.Background(), f.actor, f.report.ID, validEscalateInput(userID))

	assert.True(t, apperror.IsConflict(err))
	f.pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestEscalationService_Escalate_DeduplicatesRecipients(t *testing.T) {
	f := newEscalationFixture()
	userID := uuid.New()
	f.users.On("ExistingIDs", mock.Anything, []uuid.UUID{userID}).Return([]uuid.UUID{userID}, nil)
	f.repo.On("Escalate", mock.Anything, mock.Anything, mock.MatchedBy(func(ns []models.EscalationNotification) bool {
		return len(ns) == 1 && ns[0].UserID == userID && ns[0].NotificationType == models.NotificationEmail
	})).Return(nil)
	f.pusher.On("Push", mock.Anything, userID).Return(false, nil)
	f.publisher.On("Publish", mock.Anything, userID).Return(nil)

	result, err := f.svc.Escalate(context.Background(), f.actor, f.report.ID, validEscalateInput(userID, userID))

	require.NoError(t, err)
	assert.Len(t, result.Notifications, 1)
	assert.Contains(t, string(result.Notifications[0].Metadata), f.actor.UserID.String())
	f.repo.AssertExpectations(t)
}

func TestEscalationService_Escalate_DispatchContinuesAfterFailure(t *testing.T) {
	f := newEscalationFixture()
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	recipients := []uuid.UUID{first, second, third}
	f.users.On("ExistingIDs", mock.Anything, recipients).Return(recipients, nil)
	f.repo.On("Escalate", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// первый: ошибка websocket и ошибка очереди; второй доставлен; третий не в сети
	f.pusher.On("Push", mock.Anything, first).Return(false, errors.New("socket closed"))
	f.pusher.On("Push", mock.Anything, second).Return(true, nil)
	f.pusher.On("Push", mock.Anything, third).Return(false, nil)
	f.publisher.On("Publish", mock.Anything, first).Return(errors.New("broker down"))
	f.publisher.On("Publish", mock.Anything, third).Return(nil)
	f.states.On("Transition", mock.Anything, mock.Anything, (*uuid.UUID)(nil), models.NotificationSent).
		Return(&models.EscalationNotification{UserID: second, NotificationType: models.NotificationPush, Status: models.NotificationSent}, nil)

	in := validEscalateInput(recipients...)
	in.NotificationType = models.NotificationPush
	result, err := f.svc.Escalate(context.Background(), f.actor, f.report.ID, in)

	require.NoError(t, err)
	require.Len(t, result.Notifications, 3)
	assert.Equal(t, models.NotificationPending, result.Notifications[0].Status)
	assert.Equal(t, models.NotificationSent, result.Notifications[1].Status)
	assert.Equal(t, models.NotificationPending, result.Notifications[2].Status)
	f.pusher.AssertNumberOfCalls(t, "Push", 3)
	f.publisher.AssertNumberOfCalls(t, "Publish", 2)
	f.states.AssertNumberOfCalls(t, "Transition", 1)
}

func TestEscalationService_Escalate_ForeignOrganization(t *testing.T) {
	f := newEscalationFixture()
	otherOrg := uuid.New()
	actor := Identity{UserID: uuid.New(), Role: models.RoleManager, OrganizationID: &otherOrg}

	_, err := f.svc.Escalate(context.Background(), actor, f.report.ID, validEscalateInput(uuid.New()))

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	f.repo.AssertNotCalled(t, "Escalate", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscalationService_Resolve(t *testing.T) {
	f := newEscalationFixture()
	escID := uuid.New()
	f.repo.On("GetByID", mock.Anything, escID).Return(&models.ReportEscalation{ID: escID, ReportID: f.report.ID}, nil)

	t.Run("notes required", func(t *testing.T) {
		_, err := f.svc.Resolve(context.Background(), f.actor, escID, ResolveInput{Notes: "   "})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("already resolved", func(t *testing.T) {
		f.repo.On("Resolve", mock.Anything, escID, mock.Anything).Return(nil, repository.ErrEscalationAlreadyResolved).Once()
		_, err := f.svc.Resolve(context.Background(), f.actor, escID, ResolveInput{Notes: "Устранено"})
		assert.ErrorIs(t, err, apperror.ErrEscalationAlreadyResolved)
	})

	t.Run("resolution written as a whole", func(t *testing.T) {
		now := time.Now()
		resolved := &models.ReportEscalation{ID: escID, ReportID: f.report.ID, ResolvedAt: &now}
		f.repo.On("Resolve", mock.Anything, escID, mock.MatchedBy(func(res models.EscalationResolution) bool {
			return res.ResolvedBy == f.actor.UserID && res.Notes == "Устранено" && !res.ResolvedAt.IsZero()
		})).Return(resolved, nil).Once()

		esc, err := f.svc.Resolve(context.Background(), f.actor, escID, ResolveInput{Notes: " Устранено "})
		require.NoError(t, err)
		assert.True(t, esc.IsResolved())
	})
}

func TestEscalationService_AddUpdate_PriorityChange(t *testing.T) {
	f := newEscalationFixture()
	escID := uuid.New()
	f.repo.On("GetByID", mock.Anything, escID).Return(&models.ReportEscalation{ID: escID, ReportID: f.report.ID}, nil)

	bad := "Urgent"
	_, err := f.svc.AddUpdate(context.Background(), f.actor, escID, UpdateInput{
		Type: models.UpdatePriorityChange, Content: "Повышаем приоритет", Priority: &bad,
	})
	assert.True(t, apperror.IsValidation(err))

	critical := models.PriorityCritical
	f.repo.On("AddUpdate", mock.Anything, mock.Anything, &critical).Return(nil)
	upd, err := f.svc.AddUpdate(context.Background(), f.actor, escID, UpdateInput{
		Type: models.UpdatePriorityChange, Content: "Повышаем приоритет", Priority: &critical,
	})
	require.NoError(t, err)
	assert.Equal(t, f.actor.UserID, upd.UserID)
}

func TestEscalationService_Reassign_UnknownAssignee(t *testing.T) {
	f := newEscalationFixture()
	assignee := uuid.New()
	f.users.On("ExistingIDs", mock.Anything, []uuid.UUID{assignee}).Return([]uuid.UUID{}, nil)

	_, err := f.svc.Reassign(context.Background(), f.actor, uuid.New(), assignee, nil)

	assert.True(t, apperror.IsValidation(err))
	f.repo.AssertNotCalled(t, "Reassign", mock.Anything, mock.Anything)
}

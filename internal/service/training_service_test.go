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

type mockTrainingRepo struct {
	mock.Mock
}

func (m *mockTrainingRepo) Create(ctx context.Context, t *models.Training) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTrainingRepo) Update(ctx context.Context, t *models.Training) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTrainingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Training, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Training), args.Error(1)
}

func (m *mockTrainingRepo) List(ctx context.Context, search, industry string, limit, offset int) ([]models.Training, int, error) {
	args := m.Called(ctx, search, industry, limit, offset)
	return args.Get(0).([]models.Training), args.Int(1), args.Error(2)
}

func (m *mockTrainingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTrainingRepo) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTrainingRepo) UpdateIndustry(ctx context.Context, ids []uuid.UUID, industry string) (int64, error) {
	args := m.Called(ctx, ids, industry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTrainingRepo) EnrollmentStats(ctx context.Context, trainingID uuid.UUID) (*models.EnrollmentStats, error) {
	args := m.Called(ctx, trainingID)
	return args.Get(0).(*models.EnrollmentStats), args.Error(1)
}

func (m *mockTrainingRepo) EnrollmentsByOrganization(ctx context.Context, trainingID uuid.UUID) ([]models.OrganizationEnrollment, error) {
	args := m.Called(ctx, trainingID)
	return args.Get(0).([]models.OrganizationEnrollment), args.Error(1)
}

func (m *mockTrainingRepo) Statistics(ctx context.Context) (*models.TrainingStatistics, error) {
	args := m.Called(ctx)
	return args.Get(0).(*models.TrainingStatistics), args.Error(1)
}

func (m *mockTrainingRepo) Enroll(ctx context.Context, e *models.Enrollment) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockTrainingRepo) Unenroll(ctx context.Context, trainingID, userID uuid.UUID) error {
	return m.Called(ctx, trainingID, userID).Error(0)
}

func (m *mockTrainingRepo) UpdateEnrollmentStatus(ctx context.Context, trainingID, userID uuid.UUID, status string, completedAt *time.Time) (*models.Enrollment, error) {
	args := m.Called(ctx, trainingID, userID, status, completedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Enrollment), args.Error(1)
}

func (m *mockTrainingRepo) ListEnrollments(ctx context.Context, trainingID uuid.UUID) ([]models.Enrollment, error) {
	args := m.Called(ctx, trainingID)
	return args.Get(0).([]models.Enrollment), args.Error(1)
}

type mockMembershipLookup struct {
	mock.Mock
}

func (m *mockMembershipLookup) GetMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, completionRate(0, 0))
	assert.Equal(t, 33.33, completionRate(1, 3))
	assert.Equal(t, 66.67, completionRate(2, 3))
	assert.Equal(t, 100.0, completionRate(4, 4))
}

func TestTrainingService_UpdateEnrollmentStatus_CompletedAt(t *testing.T) {
	trainingID, userID := uuid.New(), uuid.New()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		status        string
		wantCompleted bool
		progress      int
	}{
		{models.TrainingCompleted, true, 100},
		{models.TrainingInProgress, false, 50},
		{models.TrainingCancelled, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			repo := new(mockTrainingRepo)
			svc := NewTrainingService(repo, new(mockMembershipLookup), nil)
			svc.now = func() time.Time { return fixed }

			repo.On("UpdateEnrollmentStatus", mock.Anything, trainingID, userID, tt.status, mock.MatchedBy(func(at *time.Time) bool {
				if tt.wantCompleted {
					return at != nil && at.Equal(fixed)
				}
				return at == nil
			})).Return(&models.Enrollment{TrainingID: trainingID, UserID: userID, Status: tt.status}, nil)

			view, err := svc.UpdateEnrollmentStatus(context.Background(), trainingID, userID, tt.status)

			require.NoError(t, err)
			assert.Equal(t, tt.progress, view.Progress)
			repo.AssertExpectations(t)
		})
	}
}

func TestTrainingService_UpdateEnrollmentStatus_UnknownStatus(t *testing.T) {
	repo := new(mockTrainingRepo)
	svc := NewTrainingService(repo, new(mockMembershipLookup), nil)

	_, err := svc.UpdateEnrollmentStatus(context.Background(), uuid.New(), uuid.New(), "Graduated")

	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "UpdateEnrollmentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrainingService_Get_CompletionRate(t *testing.T) {
	repo := new(mockTrainingRepo)
	svc := NewTrainingService(repo, new(mockMembershipLookup), nil)
	id := uuid.New()

	repo.On("GetByID", mock.Anything, id).Return(&models.Training{ID: id, Name: "Working at Height"}, nil)
	repo.On("EnrollmentStats", mock.Anything, id).Return(&models.EnrollmentStats{TotalEnrolled: 3, Completed: 1}, nil)
	repo.On("EnrollmentsByOrganization", mock.Anything, id).Return([]models.OrganizationEnrollment{{Organization: "Acme", Count: 3}}, nil)
	repo.On("ListEnrollments", mock.Anything, id).Return([]models.Enrollment{
		{Status: models.TrainingCompleted},
		{Status: models.TrainingInProgress},
		{Status: models.TrainingPending},
	}, nil)

	details, err := svc.Get(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, 33.33, details.Stats.CompletionRate)
	require.Len(t, details.Enrollments, 3)
	assert.Equal(t, 100, details.Enrollments[0].Progress)
	assert.Equal(t, 50, details.Enrollments[1].Progress)
	assert.Equal(t, 0, details.Enrollments[2].Progress)
}

func TestTrainingService_Bulk(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	t.Run("unknown action", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		svc := NewTrainingService(repo, new(mockMembershipLookup), nil)

		_, err := svc.Bulk(context.Background(), "archive", []uuid.UUID{a}, "")
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("empty ids", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		svc := NewTrainingService(repo, new(mockMembershipLookup), nil)

		_, err := svc.Bulk(context.Background(), TrainingBulkDelete, nil, "")
		assert.True(t, apperror.IsValidation(err))
		repo.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything)
	})

	t.Run("industry required", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		svc := NewTrainingService(repo, new(mockMembershipLookup), nil)

		_, err := svc.Bulk(context.Background(), TrainingBulkUpdateIndustry, []uuid.UUID{a}, "  ")
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("delete dedupes ids", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		svc := NewTrainingService(repo, new(mockMembershipLookup), nil)
		repo.On("DeleteMany", mock.Anything, []uuid.UUID{a, b}).Return(int64(1), nil)

		n, err := svc.Bulk(context.Background(), TrainingBulkDelete, []uuid.UUID{a, b, a}, "")

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("update industry", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		svc := NewTrainingService(repo, new(mockMembershipLookup), nil)
		repo.On("UpdateIndustry", mock.Anything, []uuid.UUID{a}, "Oil & Gas").Return(int64(1), nil)

		n, err := svc.Bulk(context.Background(), TrainingBulkUpdateIndustry, []uuid.UUID{a}, " Oil & Gas ")

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestTrainingService_Enroll(t *testing.T) {
	trainingID, userID, orgID := uuid.New(), uuid.New(), uuid.New()

	t.Run("organization taken from membership", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		members := new(mockMembershipLookup)
		svc := NewTrainingService(repo, members, nil)

		repo.On("GetByID", mock.Anything, trainingID).Return(&models.Training{ID: trainingID}, nil)
		members.On("GetMembership", mock.Anything, userID).Return(&models.Membership{UserID: userID, OrganizationID: &orgID}, nil)
		repo.On("Enroll", mock.Anything, mock.MatchedBy(func(e *models.Enrollment) bool {
			return e.OrganizationID != nil && *e.OrganizationID == orgID && e.Status == models.TrainingPending
		})).Return(nil)

		view, err := svc.Enroll(context.Background(), trainingID, userID)

		require.NoError(t, err)
		assert.Equal(t, 0, view.Progress)
	})

	t.Run("already enrolled", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		members := new(mockMembershipLookup)
		svc := NewTrainingService(repo, members, nil)

		repo.On("GetByID", mock.Anything, trainingID).Return(&models.Training{ID: trainingID}, nil)
		members.On("GetMembership", mock.Anything, userID).Return(&models.Membership{UserID: userID, OrganizationID: &orgID}, nil)
		repo.On("Enroll", mock.Anything, mock.Anything).Return(repository.ErrAlreadyEnrolled)

		_, err := svc.Enroll(context.Background(), trainingID, userID)

		assert.ErrorIs(t, err, apperror.ErrAlreadyEnrolled)
	})

	t.Run("user without membership", func(t *testing.T) {
		repo := new(mockTrainingRepo)
		members := new(mockMembershipLookup)
		svc := NewTrainingService(repo, members, nil)

		repo.On("GetByID", mock.Anything, trainingID).Return(&models.Training{ID: trainingID}, nil)
		members.On("GetMembership", mock.Anything, userID).Return(nil, repository.ErrMembershipNotFound)

		_, err := svc.Enroll(context.Background(), trainingID, userID)

		assert.True(t, apperror.IsValidation(err))
		repo.AssertNotCalled(t, "Enroll", mock.Anything, mock.Anything)
	})
}

func TestTrainingService_StatisticsCachedAndInvalidated(t *testing.T) {
	repo := new(mockTrainingRepo)
	svc := NewTrainingService(repo, new(mockMembershipLookup), nil)
	id := uuid.New()

	repo.On("Statistics", mock.Anything).Return(&models.TrainingStatistics{TotalTrainings: 2}, nil)
	repo.On("Delete", mock.Anything, id).Return(nil)

	_, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	_, err = svc.Statistics(context.Background())
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Statistics", 1)

	require.NoError(t, svc.Delete(context.Background(), id))

	_, err = svc.Statistics(context.Background())
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Statistics", 2)
}

func TestTrainingService_Delete_WithEnrollments(t *testing.T) {
	repo := new(mockTrainingRepo)
	svc := NewTrainingService(repo, new(mockMembershipLookup), nil)
	id := uuid.New()
	repo.On("Delete", mock.Anything, id).Return(repository.ErrTrainingHasEnrollments)

	err := svc.Delete(context.Background(), id)

	assert.True(t, apperror.IsConflict(err))
}

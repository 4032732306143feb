package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

func TestReportUpdateStatus_MarkRequiredAndUpdateCommitTogether(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportRepository(db)
	report := &models.Report{ID: uuid.New(), Status: models.ReportStatusInProgress}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE reports SET escalation_status = \$2`).
		WithArgs(report.ID, models.EscalationRequired, models.EscalationNotRequired, models.EscalationResolved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE reports SET\s+report_type`).
		WillReturnRows(sqlmock.NewRows([]string{"is_escalated", "escalation_status", "updated_at"}).
			AddRow(false, models.EscalationRequired, time.Now()))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateStatus(context.Background(), report, true))
	assert.Equal(t, models.EscalationRequired, report.EscalationStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportUpdateStatus_UpdateFailureRollsBackMarkRequired(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportRepository(db)
	report := &models.Report{ID: uuid.New(), Status: models.ReportStatusInProgress}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE reports SET escalation_status = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE reports SET\s+report_type`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), report, true)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportUpdateStatus_EscalatedReportIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportRepository(db)
	report := &models.Report{ID: uuid.New(), Status: models.ReportStatusInProgress}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE reports SET escalation_status = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), report, true)
	assert.ErrorIs(t, err, ErrEscalationStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportUpdateStatus_WithoutMarkRequired(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportRepository(db)
	report := &models.Report{ID: uuid.New(), Status: models.ReportStatusClosed}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE reports SET\s+report_type`).
		WillReturnRows(sqlmock.NewRows([]string{"is_escalated", "escalation_status", "updated_at"}).
			AddRow(false, models.EscalationNotRequired, time.Now()))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateStatus(context.Background(), report, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

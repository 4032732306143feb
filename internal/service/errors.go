package service

import (
	"errors"

	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

var repoErrors = []struct {
	repo error
	app  *apperror.AppError
}{
	{repository.ErrReportNotFound, apperror.ErrReportNotFound},
	{repository.ErrEscalationNotFound, apperror.ErrEscalationNotFound},
	{repository.ErrNotificationNotFound, apperror.ErrNotificationNotFound},
	{repository.ErrUploadNotFound, apperror.ErrUploadNotFound},
	{repository.ErrUserNotFound, apperror.ErrUserNotFound},
	{repository.ErrMembershipNotFound, apperror.ErrUserNotFound},
	{repository.ErrOrganizationNotFound, apperror.ErrOrganizationNotFound},
	{repository.ErrHazardNotFound, apperror.ErrHazardNotFound},
	{repository.ErrPlanNotFound, apperror.ErrPlanNotFound},
	{repository.ErrTrainingNotFound, apperror.ErrTrainingNotFound},
	{repository.ErrEnrollmentNotFound, apperror.ErrEnrollmentNotFound},
	{repository.ErrReportAlreadyEscalated, apperror.ErrReportAlreadyEscalated},
	{repository.ErrEscalationAlreadyResolved, apperror.ErrEscalationAlreadyResolved},
	{repository.ErrInvalidNotificationTransition, apperror.ErrInvalidNotificationTransition},
	{repository.ErrEscalationStateConflict, apperror.ErrInvalidEscalationStatusChange},
	{repository.ErrEmailTaken, apperror.ErrEmailTaken},
	{repository.ErrUserHasHistory, apperror.ErrUserHasHistory},
	{repository.ErrTrainingNameTaken, apperror.ErrTrainingNameTaken},
	{repository.ErrTrainingHasEnrollments, apperror.ErrTrainingHasEnrollments},
	{repository.ErrAlreadyEnrolled, apperror.ErrAlreadyEnrolled},
}

// translate переводит sentinel-ошибки репозиториев в AppError; прочие возвращает как есть.
func translate(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range repoErrors {
		if errors.Is(err, m.repo) {
			return m.app
		}
	}
	return err
}

func invalid(errs validation.Errors) error {
	return apperror.Validation(errs)
}

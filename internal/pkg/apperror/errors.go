package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	// Fields содержит сообщения по конкретным полям запроса.
	Fields map[string]string
	Cause  error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал с предопределёнными значениями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation создаёт ошибку валидации с сообщениями по полям.
func Validation(fields map[string]string) *AppError {
	msg := "ошибка валидации"
	if len(fields) == 1 {
		for _, m := range fields {
			msg = m
		}
	}
	return &AppError{
		Code:       ErrCodeValidation,
		Message:    msg,
		HTTPStatus: codeToHTTPStatus(ErrCodeValidation),
		Fields:     fields,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

var (
	ErrReportNotFound       = New(ErrCodeNotFound, "отчёт не найден")
	ErrEscalationNotFound   = New(ErrCodeNotFound, "эскалация не найдена")
	ErrNotificationNotFound = New(ErrCodeNotFound, "уведомление не найдено")
	ErrUploadNotFound       = New(ErrCodeNotFound, "вложение не найдено")
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrOrganizationNotFound = New(ErrCodeNotFound, "организация не найдена")
	ErrHazardNotFound       = New(ErrCodeNotFound, "опасность не найдена")
	ErrPlanNotFound         = New(ErrCodeNotFound, "план реагирования не найден")
	ErrTrainingNotFound     = New(ErrCodeNotFound, "обучение не найдено")
	ErrEnrollmentNotFound   = New(ErrCodeNotFound, "запись на обучение не найдена")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrInvalidToken         = New(ErrCodeUnauthorized, "недействительный токен")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrAccountDisabled      = New(ErrCodeForbidden, "аккаунт заблокирован")
	ErrInvalidCredentials   = New(ErrCodeUnauthorized, "неверный email или пароль")

	ErrReportAlreadyEscalated        = New(ErrCodeConflict, "отчёт уже эскалирован")
	ErrEscalationAlreadyResolved     = New(ErrCodeConflict, "эскалация уже закрыта")
	ErrInvalidNotificationTransition = New(ErrCodeConflict, "недопустимый переход статуса уведомления")
	ErrInvalidEscalationStatusChange = New(ErrCodeConflict, "недопустимое изменение статуса эскалации")
	ErrTrainingHasEnrollments        = New(ErrCodeConflict, "нельзя удалить обучение с записями слушателей")
	ErrEmailTaken                    = New(ErrCodeConflict, "email уже зарегистрирован")
	ErrTrainingNameTaken             = New(ErrCodeConflict, "обучение с таким названием уже существует")
	ErrAlreadyEnrolled               = New(ErrCodeConflict, "пользователь уже записан на обучение")
	ErrUserHasHistory                = New(ErrCodeConflict, "нельзя удалить пользователя, участвовавшего в эскалациях")
)

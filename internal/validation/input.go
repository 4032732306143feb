package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxReportTypeLength        = 255
	MinPublicDescriptionLength = 10
	MaxPublicDescriptionLength = 5000
	MinEscalationReasonLength  = 10
	MaxNameLength              = 255
	MaxPhoneLength             = 20
	MaxAddressLength           = 500
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	reporterRegex    = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

// Самая ранняя допустимая дата инцидента (не включительно).
var minIncidentDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Errors копит сообщения об ошибках по полям запроса.
type Errors map[string]string

// Check запоминает err для поля, если он не nil и поле ещё без ошибки.
func (e Errors) Check(field string, err error) {
	if err == nil {
		return
	}
	if _, exists := e[field]; !exists {
		e[field] = err.Error()
	}
}

// Add запоминает сообщение для поля.
func (e Errors) Add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

// Empty нет ни одной ошибки.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return fmt.Errorf("некорректный формат email")
	}
	if len(local) == 0 || len(local) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domain) == 0 || len(domain) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(local) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domain) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}
	return nil
}

// ValidateOneOf проверяет, что значение входит в множество допустимых.
func ValidateOneOf(fieldName, value string, allowed map[string]struct{}) error {
	if _, ok := allowed[value]; !ok {
		return fmt.Errorf("%s имеет недопустимое значение %q", fieldName, value)
	}
	return nil
}

// ValidateLatitude широта в диапазоне [-90, 90].
func ValidateLatitude(lat *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("широта должна быть в диапазоне от -90 до 90")
	}
	return nil
}

// ValidateLongitude долгота в диапазоне [-180, 180].
func ValidateLongitude(long *float64) error {
	if long != nil && (*long < -180 || *long > 180) {
		return fmt.Errorf("долгота должна быть в диапазоне от -180 до 180")
	}
	return nil
}

// ValidateReporterName имя заявителя публичной формы: только латинские буквы и пробелы.
func ValidateReporterName(name string) error {
	if name == "" {
		return nil
	}
	if err := ValidateLength("имя заявителя", name, 0, MaxNameLength); err != nil {
		return err
	}
	if !reporterRegex.MatchString(name) {
		return fmt.Errorf("имя заявителя может содержать только буквы и пробелы")
	}
	return nil
}

// ValidateIncidentDate дата инцидента не позже сегодняшнего дня и позже 1900-01-01.
// Сравнение идёт по календарным датам в часовом поясе now.
func ValidateIncidentDate(date, now time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("дата инцидента обязательна")
	}
	d := truncateDay(date)
	if d.After(truncateDay(now)) {
		return fmt.Errorf("дата инцидента не может быть в будущем")
	}
	if !d.After(minIncidentDate) {
		return fmt.Errorf("дата инцидента должна быть позже 1900-01-01")
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate разбирает дату в формате YYYY-MM-DD или RFC3339.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректный формат даты, ожидается YYYY-MM-DD")
	}
	return t, nil
}

// NilIfEmpty возвращает nil для пустой строки после обрезки пробелов.
func NilIfEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

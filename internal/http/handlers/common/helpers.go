package common

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/http/middleware"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

var (
	// ErrUserNotFound личность запроса не найдена в контексте.
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID ошибка разбора UUID.
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentIdentity достаёт личность, положенную AuthMiddleware.
func CurrentIdentity(c *gin.Context) (service.Identity, error) {
	raw, exists := c.Get(middleware.ContextIdentityKey)
	if !exists {
		return service.Identity{}, ErrUserNotFound
	}

	identity, ok := raw.(service.Identity)
	if !ok || identity.UserID == uuid.Nil {
		return service.Identity{}, ErrUserNotFound
	}

	return identity, nil
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// ParseOptionalUUID разбирает необязательный UUID; пустая строка даёт nil.
func ParseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidUUID
	}
	return &parsed, nil
}

// ParseIntQuery читает целочисленный query параметр с значением по умолчанию.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// ParseBoolQuery читает необязательный bool параметр; пустое или кривое значение даёт nil.
func ParseBoolQuery(c *gin.Context, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &parsed
}

// ParseDateQuery читает дату YYYY-MM-DD из query.
func ParseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("параметр %s должен быть датой в формате YYYY-MM-DD", key)
	}
	return &parsed, nil
}

// GetPagination извлекает limit и offset с ограничениями.
func GetPagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", defaultLimit)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return
}

// FormFiles собирает файлы multipart формы по одному из имён полей.
// Файлы открываются лениво, закрывает их сервис.
func FormFiles(c *gin.Context, fields ...string) []service.FileInput {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}

	var out []service.FileInput
	for _, field := range fields {
		for _, fh := range form.File[field] {
			out = append(out, FileInput(fh))
		}
	}
	return out
}

// FileInput превращает заголовок multipart файла во вход сервиса.
func FileInput(fh *multipart.FileHeader) service.FileInput {
	return service.FileInput{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadSeekCloser, error) {
			return fh.Open()
		},
	}
}

// StringPtr возвращает nil для пустой строки после trim.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix корень ключей вложений отчётов.
const KeyPrefix = "hsse-reports"

var (
	// ErrTooLarge размер файла превышает лимит хранилища.
	ErrTooLarge = errors.New("storage: file too large")
	// ErrInvalidSignature подпись ссылки неверна или срок истёк.
	ErrInvalidSignature = errors.New("storage: invalid or expired signature")
)

// BlobStore хранилище бинарных объектов.
type BlobStore interface {
	// Put сохраняет объект под ключом key и возвращает число записанных байт.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
	// URL постоянный адрес объекта.
	URL(key string) string
	// TemporaryURL временная ссылка на объект.
	TemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectKey формирует ключ вида hsse-reports/2006/01/02/<uuid>.<ext>.
func ObjectKey(now time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(KeyPrefix, now.UTC().Format("2006/01/02"), name)
}

// cleanKey запрещает выход за пределы корня хранилища.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("storage: пустой ключ")
	}
	return cleaned, nil
}

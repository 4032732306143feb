package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LocalStore хранит вложения на диске и подписывает ссылки HMAC.
type LocalStore struct {
	rootPath       string
	publicURL      string
	secret         []byte
	maxUploadBytes int64
	now            func() time.Time
}

// NewLocalStore создаёт файловое хранилище.
func NewLocalStore(rootPath, publicURL, secret string, maxUploadBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &LocalStore{
		rootPath:       rootPath,
		publicURL:      publicURL,
		secret:         []byte(secret),
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}, nil
}

// Put записывает файл через временный и переименовывает его.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key, err := cleanKey(key)
	if err != nil {
		return 0, err
	}

	targetPath := filepath.Join(s.rootPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return 0, fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	reader := r
	if s.maxUploadBytes > 0 {
		reader = &io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	}
	written, err := io.Copy(f, reader)
	if err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if s.maxUploadBytes > 0 && written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return 0, ErrTooLarge
	}

	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}
	return written, nil
}

// Delete удаляет файл; отсутствие файла не ошибка.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := cleanKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.rootPath, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// Exists проверяет наличие файла.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.Size(ctx, key); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Size размер файла в байтах.
func (s *LocalStore) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// URL адрес файла без подписи.
func (s *LocalStore) URL(key string) string {
	return s.publicURL + "/" + key
}

// TemporaryURL ссылка вида <public>/<key>?expires=<unix>&signature=<hmac>.
func (s *LocalStore) TemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))
	return s.URL(key) + "?" + q.Encode(), nil
}

// Verify проверяет подпись и срок действия ссылки.
func (s *LocalStore) Verify(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(s.sign(key, exp)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Path абсолютный путь файла для отдачи обработчиком.
func (s *LocalStore) Path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, filepath.FromSlash(key)), nil
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

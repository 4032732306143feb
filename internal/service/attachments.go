package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/attachment"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/storage"
)

// FileInput загружаемый файл; Open вызывается один раз и закрывается сервисом.
type FileInput struct {
	Name string
	Size int64
	Open func() (io.ReadSeekCloser, error)
}

// FailedFile файл, который не удалось сохранить.
type FailedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// AttachmentResult итог загрузки пачки файлов.
type AttachmentResult struct {
	Uploaded []models.ReportUpload `json:"uploaded"`
	Failed   []FailedFile          `json:"failed"`
}

// UploadRepository описывает хранилище записей о вложениях.
type UploadRepository interface {
	Create(ctx context.Context, upload *models.ReportUpload) error
	GetByID(ctx context.Context, reportID, uploadID uuid.UUID) (*models.ReportUpload, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ReportUpload, error)
	CountByReport(ctx context.Context, reportID uuid.UUID) (int, error)
	Delete(ctx context.Context, uploadID uuid.UUID) error
}

// keyFunc строит ключ объекта для файла.
type keyFunc func(reportID uuid.UUID, file *attachment.File, now time.Time) string

// attachmentStore общий конвейер: проверка, запись в хранилище, запись в БД.
type attachmentStore struct {
	uploads UploadRepository
	blobs   storage.BlobStore
	now     func() time.Time
}

// store сохраняет файлы по одному; ошибка одного файла не останавливает остальные.
func (a *attachmentStore) store(ctx context.Context, reportID uuid.UUID, files []FileInput, policy attachment.Policy, key keyFunc, uploadedBy *string) AttachmentResult {
	res := AttachmentResult{Uploaded: []models.ReportUpload{}, Failed: []FailedFile{}}

	for _, f := range files {
		upload, err := a.storeOne(ctx, reportID, f, policy, key, uploadedBy)
		if err != nil {
			logger.FromContext(ctx).WithFields(logrus.Fields{
				"report_id": reportID,
				"file":      f.Name,
				"error":     err.Error(),
			}).Warn("вложение не сохранено")
			res.Failed = append(res.Failed, FailedFile{File: f.Name, Error: err.Error()})
			continue
		}
		res.Uploaded = append(res.Uploaded, *upload)
	}
	return res
}

func (a *attachmentStore) storeOne(ctx context.Context, reportID uuid.UUID, f FileInput, policy attachment.Policy, key keyFunc, uploadedBy *string) (*models.ReportUpload, error) {
	src, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer src.Close()

	info, err := policy.Inspect(f.Name, f.Size, src)
	if err != nil {
		return nil, err
	}

	objectKey := key(reportID, info, a.now())
	written, err := a.blobs.Put(ctx, objectKey, src, info.Size, info.ContentType)
	if err != nil {
		return nil, fmt.Errorf("не удалось сохранить файл: %w", err)
	}

	name := info.Name
	upload := &models.ReportUpload{
		ReportID:         reportID,
		FileURL:          a.blobs.URL(objectKey),
		StoragePath:      &objectKey,
		FileType:         info.ContentType,
		OriginalFilename: &name,
		FileSize:         written,
		UploadedBy:       uploadedBy,
	}
	if err := a.uploads.Create(ctx, upload); err != nil {
		a.removeBlob(ctx, objectKey)
		return nil, fmt.Errorf("не удалось записать вложение: %w", err)
	}
	return upload, nil
}

// removeBlob удаляет объект; ошибка только логируется.
func (a *attachmentStore) removeBlob(ctx context.Context, key string) {
	if err := a.blobs.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("не удалось удалить файл из хранилища")
	}
}

// removeBlobs удаляет объекты вложений, у которых есть путь в хранилище.
func (a *attachmentStore) removeBlobs(ctx context.Context, uploads []models.ReportUpload) {
	for _, u := range uploads {
		if u.StoragePath != nil && *u.StoragePath != "" {
			a.removeBlob(ctx, *u.StoragePath)
		}
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func shortRand() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// adminKey reports/{id}/{unix}_{rand}.{ext}
func adminKey(reportID uuid.UUID, f *attachment.File, now time.Time) string {
	return path.Join("reports", reportID.String(), fmt.Sprintf("%d_%s.%s", now.Unix(), shortRand(), f.Ext))
}

// publicKey incident-reports/Y/m/d/{name}_{unix}_{rand}.{ext}
func publicKey(_ uuid.UUID, f *attachment.File, now time.Time) string {
	base := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "_")
	if base == "" {
		base = "file"
	}
	if len(base) > 64 {
		base = base[:64]
	}
	return path.Join("incident-reports", now.UTC().Format("2006/01/02"),
		fmt.Sprintf("%s_%d_%s.%s", base, now.Unix(), shortRand(), f.Ext))
}

// chatbotKey hsse-reports/Y/m/d/{uuid}.{ext}
func chatbotKey(_ uuid.UUID, f *attachment.File, now time.Time) string {
	return storage.ObjectKey(now, f.Ext)
}

package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/validation"
)

// Категории материалов ленты.
const (
	ScraperCategoryNews   = "news"
	ScraperCategorySocial = "social"

	// ScraperPageSize размер страницы ленты.
	ScraperPageSize = 20
	// MaxScraperBatch наибольшее число материалов в одной загрузке.
	MaxScraperBatch = 500
)

var scraperCategories = map[string]struct{}{
	ScraperCategoryNews:   {},
	ScraperCategorySocial: {},
}

// ScraperRepository хранилище ленты внешних материалов.
type ScraperRepository interface {
	List(ctx context.Context, f repository.ScraperFilter) ([]models.ScrapedItem, int, error)
	InsertMany(ctx context.Context, items []models.ScrapedItem) (int, error)
}

// ScraperService лента новостей и публикаций об инцидентах.
type ScraperService struct {
	repo ScraperRepository
	now  func() time.Time
}

// NewScraperService создаёт сервис.
func NewScraperService(repo ScraperRepository) *ScraperService {
	return &ScraperService{repo: repo, now: time.Now}
}

// ScrapedInput материал, присланный сборщиком.
type ScrapedInput struct {
	Source      string     `json:"source"`
	Category    string     `json:"category"`
	Title       string     `json:"title"`
	Content     *string    `json:"content"`
	URL         *string    `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
}

// List возвращает материалы по фильтру.
func (s *ScraperService) List(ctx context.Context, f repository.ScraperFilter) ([]models.ScrapedItem, int, error) {
	if f.Category != "" {
		if err := validation.ValidateOneOf("категория", f.Category, scraperCategories); err != nil {
			return nil, 0, invalid(validation.Errors{"category": err.Error()})
		}
	}
	f.Source = strings.TrimSpace(f.Source)
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit <= 0 {
		f.Limit = ScraperPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Ingest проверяет и сохраняет пачку материалов целиком или не сохраняет ничего.
func (s *ScraperService) Ingest(ctx context.Context, items []ScrapedInput) (int, error) {
	errs := validation.Errors{}
	if len(items) == 0 {
		errs.Add("items", "нужно передать хотя бы один материал")
	}
	if len(items) > MaxScraperBatch {
		errs.Add("items", "слишком много материалов в одной загрузке")
	}

	now := s.now()
	rows := make([]models.ScrapedItem, 0, len(items))
	for i, in := range items {
		prefix := "items." + strconv.Itoa(i) + "."
		source := strings.TrimSpace(in.Source)
		title := strings.TrimSpace(in.Title)
		errs.Check(prefix+"source", validation.ValidateNonEmpty("источник", source))
		errs.Check(prefix+"source", validation.ValidateLength("источник", source, 0, validation.MaxNameLength))
		errs.Check(prefix+"title", validation.ValidateNonEmpty("заголовок", title))
		errs.Check(prefix+"category", validation.ValidateOneOf("категория", in.Category, scraperCategories))

		rows = append(rows, models.ScrapedItem{
			Source:      source,
			Category:    in.Category,
			Title:       title,
			Content:     validation.NilIfEmpty(in.Content),
			URL:         validation.NilIfEmpty(in.URL),
			PublishedAt: in.PublishedAt,
			ScrapedAt:   now,
		})
	}
	if !errs.Empty() {
		return 0, invalid(errs)
	}
	return s.repo.InsertMany(ctx, rows)
}

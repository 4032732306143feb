package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/repository/common"
)

// ScraperFilter параметры ленты внешних материалов.
type ScraperFilter struct {
	Category string
	Source   string
	Search   string
	Limit    int
	Offset   int
}

// ScraperRepository работает с таблицей ai_scrapers.
type ScraperRepository struct {
	db *sqlx.DB
}

// NewScraperRepository создаёт экземпляр.
func NewScraperRepository(db *sqlx.DB) *ScraperRepository {
	return &ScraperRepository{db: db}
}

// List возвращает материалы, свежие публикации первыми.
func (r *ScraperRepository) List(ctx context.Context, f ScraperFilter) ([]models.ScrapedItem, int, error) {
	var p common.Placeholder
	if f.Category != "" {
		p.Add("category = ?", f.Category)
	}
	if f.Source != "" {
		p.Add("source ILIKE ?", "%"+f.Source+"%")
	}
	if f.Search != "" {
		p.Add("(title ILIKE ? OR content ILIKE ?)", "%"+f.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM ai_scrapers`+p.Where(), p.Args()...); err != nil {
		return nil, 0, fmt.Errorf("scraper repository: count %w", err)
	}

	query := `SELECT * FROM ai_scrapers` + p.Where() +
		fmt.Sprintf(" ORDER BY published_at DESC NULLS LAST, scraped_at DESC LIMIT $%d OFFSET $%d", p.Next(), p.Next()+1)
	var items []models.ScrapedItem
	if err := r.db.SelectContext(ctx, &items, query, append(p.Args(), f.Limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("scraper repository: list %w", err)
	}
	return items, total, nil
}

// InsertMany сохраняет пачку материалов одной транзакцией.
func (r *ScraperRepository) InsertMany(ctx context.Context, items []models.ScrapedItem) (int, error) {
	written := 0
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		inserter := common.NewBatchInserter(tx, `
			INSERT INTO ai_scrapers (source, category, title, content, url, published_at, scraped_at)
		`, 7, 200)
		for _, it := range items {
			if err := inserter.Add(ctx, it.Source, it.Category, it.Title, it.Content, it.URL, it.PublishedAt, it.ScrapedAt); err != nil {
				return err
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return err
		}
		written = inserter.Written()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scraper repository: insert many %w", err)
	}
	return written, nil
}

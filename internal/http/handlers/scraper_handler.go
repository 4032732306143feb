package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// ScraperHandler лента материалов, собранных ботом.
type ScraperHandler struct {
	scraper *service.ScraperService
}

// NewScraperHandler создаёт хэндлер.
func NewScraperHandler(scraper *service.ScraperService) *ScraperHandler {
	return &ScraperHandler{scraper: scraper}
}

// List обрабатывает GET /api/admin/ai-scrapers.
func (h *ScraperHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c, 20)

	items, total, err := h.scraper.List(c.Request.Context(), repository.ScraperFilter{
		Category: c.Query("category"),
		Source:   c.Query("source"),
		Search:   c.Query("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, limit, offset)
}

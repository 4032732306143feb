package handlers

import (
	"errors"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/storage"
)

// FileHandler отдаёт файлы локального хранилища по подписанным ссылкам.
type FileHandler struct {
	store *storage.LocalStore
}

// NewFileHandler создаёт хэндлер.
func NewFileHandler(store *storage.LocalStore) *FileHandler {
	return &FileHandler{store: store}
}

// Serve обрабатывает GET /files/*key?expires=..&signature=..
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	if err := h.store.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
		response.Forbidden(c, "ссылка недействительна или истекла")
		return
	}

	path, err := h.store.Path(key)
	if err != nil {
		response.BadRequest(c, "некорректный путь файла")
		return
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.NotFound(c, "файл не найден")
			return
		}
		response.Error(c, err)
		return
	}

	c.File(path)
}

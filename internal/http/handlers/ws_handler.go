package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/service"
	"github.com/ignatzorin/hsse-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений для живых уведомлений.
type WSHandler struct {
	hub    *ws.Hub
	tokens *service.TokenManager
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens *service.TokenManager) *WSHandler {
	return &WSHandler{hub: hub, tokens: tokens}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		response.Unauthorized(c, "access токен обязателен")
		return
	}

	identity, err := h.tokens.ParseAccess(rawToken)
	if err != nil || identity.UserID == uuid.Nil {
		response.Unauthorized(c, "невалидный access токен")
		return
	}

	// После апгрейда ответить JSON уже нельзя, ошибка только логируется.
	if err := ws.Serve(c.Request.Context(), h.hub, c.Writer, c.Request, identity.UserID); err != nil {
		logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"user_id": identity.UserID,
			"error":   err.Error(),
		}).Warn("ws: не удалось установить соединение")
	}
}

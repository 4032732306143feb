package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// NotificationHandler обслуживает маршруты уведомлений об эскалациях.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications обрабатывает GET /api/notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c, 20)
	unreadOnly := c.Query("unread_only") == "true"

	notifications, total, err := h.notifications.ListMine(c.Request.Context(), identity, limit, offset, unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, notifications, total, limit, offset)
}

// UnreadCount обрабатывает GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	count, err := h.notifications.CountUnread(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"unread": count})
}

// MarkAsRead обрабатывает PUT /api/notifications/:id/read.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	notification, err := h.notifications.MarkRead(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, notification)
}

// RecordDelivery обрабатывает PUT /api/dispatcher/notifications/:id/status.
// Вызывается внешним диспетчером после отправки email или SMS.
func (h *NotificationHandler) RecordDelivery(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status обязателен")
		return
	}

	notification, err := h.notifications.RecordDelivery(c.Request.Context(), id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, notification)
}

package ws

import (
	"context"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

// EventEscalationNotification имя события о новой эскалации.
const EventEscalationNotification = "escalation.notification"

// NotificationPusher доставляет уведомления об эскалации в открытые подключения.
type NotificationPusher struct {
	hub *Hub
}

// NewNotificationPusher создаёт адаптер поверх хаба.
func NewNotificationPusher(hub *Hub) *NotificationPusher {
	return &NotificationPusher{hub: hub}
}

// Push отправляет уведомление получателю. delivered=false, если он не в сети.
func (p *NotificationPusher) Push(ctx context.Context, n *models.EscalationNotification) (bool, error) {
	return p.hub.BroadcastToUser(ctx, n.UserID, EventEscalationNotification, n)
}

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

func TestNotificationPusher_DeliversToOnlineUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = Serve(ctx, hub, w, r, userID)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline(userID) }, time.Second, 10*time.Millisecond)

	pusher := NewNotificationPusher(hub)
	n := &models.EscalationNotification{ID: uuid.New(), UserID: userID, NotificationType: models.NotificationPush}
	delivered, err := pusher.Push(ctx, n)
	require.NoError(t, err)
	assert.True(t, delivered)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string                        `json:"type"`
		Data models.EscalationNotification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, EventEscalationNotification, msg.Type)
	assert.Equal(t, n.ID, msg.Data.ID)
}

func TestNotificationPusher_OfflineUser(t *testing.T) {
	hub := NewHub()
	pusher := NewNotificationPusher(hub)

	delivered, err := pusher.Push(context.Background(), &models.EscalationNotification{UserID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, delivered)
}

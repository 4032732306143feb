package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/goroutine"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/models"
)

// StatusUpdate тело уведомления чат-бота о смене статуса.
type StatusUpdate struct {
	EventType      string    `json:"event_type"`
	ReportID       string    `json:"report_id"`
	Status         string    `json:"status"`
	PhoneNumber    *string   `json:"phone_number"`
	Severity       *string   `json:"severity"`
	AssignedToName *string   `json:"assigned_to_name"`
	Timestamp      time.Time `json:"timestamp"`
}

// Runner запускает фоновые задачи.
type Runner interface {
	SafeGo(task string, fn func())
}

// ChatbotNotifier отправляет события в вебхук WhatsApp-бота.
type ChatbotNotifier struct {
	client *resty.Client
	url    string
	runner Runner
}

// NewChatbotNotifier создаёт клиента без повторов. Пустой url отключает отправку.
func NewChatbotNotifier(url string, timeout time.Duration, runner Runner) *ChatbotNotifier {
	if runner == nil {
		runner = goroutine.DefaultRecoveryHandler
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ChatbotNotifier{client: client, url: url, runner: runner}
}

// Enabled задан ли адрес вебхука.
func (n *ChatbotNotifier) Enabled() bool {
	return n != nil && n.url != ""
}

// NotifyStatusChange отправляет событие в фоне; ошибки только логируются.
func (n *ChatbotNotifier) NotifyStatusChange(report *models.Report, assignedToName *string) {
	if !n.Enabled() {
		return
	}

	payload := StatusUpdate{
		EventType:      "status_update",
		ReportID:       report.ID.String(),
		Status:         report.Status,
		PhoneNumber:    report.ReporterContact,
		Severity:       report.Severity,
		AssignedToName: assignedToName,
		Timestamp:      time.Now().UTC(),
	}

	n.runner.SafeGo("chatbot_webhook", func() {
		if err := n.Send(context.Background(), payload); err != nil {
			logger.L().WithFields(logrus.Fields{
				"report_id": payload.ReportID,
				"status":    payload.Status,
			}).WithError(err).Warn("не удалось уведомить чат-бот")
		}
	})
}

// Send синхронно отправляет событие.
func (n *ChatbotNotifier) Send(ctx context.Context, payload StatusUpdate) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: статус %d", resp.StatusCode())
	}
	return nil
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// ChatbotHandler API для WhatsApp бота и сборщика материалов.
type ChatbotHandler struct {
	chatbot *service.ChatbotService
	scraper *service.ScraperService
}

// NewChatbotHandler создаёт хэндлер.
func NewChatbotHandler(chatbot *service.ChatbotService, scraper *service.ScraperService) *ChatbotHandler {
	return &ChatbotHandler{chatbot: chatbot, scraper: scraper}
}

// SubmitReport обрабатывает POST /api/chatbot/reports.
func (h *ChatbotHandler) SubmitReport(c *gin.Context) {
	var req struct {
		ReportType            string              `json:"report_type"`
		Description           string              `json:"description"`
		DateOfIncident        string              `json:"date_of_incident"`
		ReporterName          string              `json:"reporter_name"`
		ReporterContact       string              `json:"reporter_contact"`
		Severity              string              `json:"severity"`
		IncidentType          string              `json:"incident_type"`
		LocationLat           *float64            `json:"location_lat"`
		LocationLong          *float64            `json:"location_long"`
		Industry              string              `json:"industry"`
		RegulationClassBroken string              `json:"regulation_class_broken"`
		AIAnalysis            *string             `json:"ai_analysis"`
		WhatsAppReportID      *string             `json:"whatsapp_report_id"`
		Source                string              `json:"source"`
		MediaFiles            []service.MediaLink `json:"media_files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	result, err := h.chatbot.Submit(c.Request.Context(), service.ChatbotReportInput{
		ReportType:            req.ReportType,
		Description:           req.Description,
		DateOfIncident:        req.DateOfIncident,
		ReporterName:          req.ReporterName,
		ReporterContact:       req.ReporterContact,
		Severity:              req.Severity,
		IncidentType:          req.IncidentType,
		LocationLat:           req.LocationLat,
		LocationLong:          req.LocationLong,
		Industry:              req.Industry,
		RegulationClassBroken: req.RegulationClassBroken,
		AIAnalysis:            req.AIAnalysis,
		WhatsAppReportID:      req.WhatsAppReportID,
		Source:                req.Source,
		MediaFiles:            req.MediaFiles,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UploadMedia обрабатывает POST /api/chatbot/reports/:id/media.
func (h *ChatbotHandler) UploadMedia(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.chatbot.AttachMedia(c.Request.Context(), id, common.FormFiles(c, "files[]", "files"), c.PostForm("uploaded_by"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Status обрабатывает GET /api/chatbot/reports/:id/status.
func (h *ChatbotHandler) Status(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	status, err := h.chatbot.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, status)
}

// IngestScraped обрабатывает POST /api/chatbot/ai-scrapers.
func (h *ChatbotHandler) IngestScraped(c *gin.Context) {
	var req struct {
		Items []service.ScrapedInput `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "ожидается поле items со списком материалов")
		return
	}

	stored, err := h.scraper.Ingest(c.Request.Context(), req.Items)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"stored": stored, "received": len(req.Items)})
}

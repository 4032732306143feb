package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// PublicReportHandler анонимная форма сообщения об инциденте.
type PublicReportHandler struct {
	reports *service.ReportService
}

// NewPublicReportHandler создаёт хэндлер.
func NewPublicReportHandler(reports *service.ReportService) *PublicReportHandler {
	return &PublicReportHandler{reports: reports}
}

// Create обрабатывает POST /api/public/reports (multipart форма, файлы в attachments[]).
func (h *PublicReportHandler) Create(c *gin.Context) {
	var req struct {
		ReportType            string   `form:"report_type" json:"report_type"`
		IncidentType          *string  `form:"incident_type" json:"incident_type"`
		Description           string   `form:"description" json:"description"`
		DateOfIncident        string   `form:"date_of_incident" json:"date_of_incident"`
		LocationLat           *float64 `form:"location_lat" json:"location_lat"`
		LocationLong          *float64 `form:"location_long" json:"location_long"`
		Severity              *string  `form:"severity" json:"severity"`
		Industry              *string  `form:"industry" json:"industry"`
		ReporterName          *string  `form:"reporter_name" json:"reporter_name"`
		ReporterContact       *string  `form:"reporter_contact" json:"reporter_contact"`
		CauseOfDeath          *string  `form:"cause_of_death" json:"cause_of_death"`
		RegulationClassBroken *string  `form:"regulation_class_broken" json:"regulation_class_broken"`
	}
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "некорректные данные формы")
		return
	}

	result, err := h.reports.CreatePublic(c.Request.Context(), service.PublicReportInput{
		ReportType:            req.ReportType,
		IncidentType:          req.IncidentType,
		Description:           req.Description,
		DateOfIncident:        req.DateOfIncident,
		LocationLat:           req.LocationLat,
		LocationLong:          req.LocationLong,
		Severity:              req.Severity,
		Industry:              req.Industry,
		ReporterName:          req.ReporterName,
		ReporterContact:       req.ReporterContact,
		CauseOfDeath:          req.CauseOfDeath,
		RegulationClassBroken: req.RegulationClassBroken,
	}, common.FormFiles(c, "attachments[]", "attachments"), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

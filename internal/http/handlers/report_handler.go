package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

const reportsPageSize = 20

// ReportHandler управление реестром отчётов в панели.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler создаёт хэндлер.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// reportRequest принимает и JSON, и multipart форму.
type reportRequest struct {
	OrganizationID        string   `json:"organization_id" form:"organization_id"`
	ReportedByUserID      string   `json:"reported_by_user_id" form:"reported_by_user_id"`
	ReportType            string   `json:"report_type" form:"report_type"`
	IncidentType          *string  `json:"incident_type" form:"incident_type"`
	Description           string   `json:"description" form:"description"`
	DateOfIncident        string   `json:"date_of_incident" form:"date_of_incident"`
	LocationLat           *float64 `json:"location_lat" form:"location_lat"`
	LocationLong          *float64 `json:"location_long" form:"location_long"`
	Severity              *string  `json:"severity" form:"severity"`
	Industry              *string  `json:"industry" form:"industry"`
	ReporterName          *string  `json:"reporter_name" form:"reporter_name"`
	ReporterContact       *string  `json:"reporter_contact" form:"reporter_contact"`
	Status                string   `json:"status" form:"status"`
	AssignedTo            string   `json:"assigned_to" form:"assigned_to"`
	CauseOfDeath          *string  `json:"cause_of_death" form:"cause_of_death"`
	RegulationClassBroken *string  `json:"regulation_class_broken" form:"regulation_class_broken"`
	FeedbackGiven         *bool    `json:"feedback_given" form:"feedback_given"`
}

func (r reportRequest) toInput() (service.ReportInput, error) {
	orgID, err := common.ParseOptionalUUID(r.OrganizationID)
	if err != nil {
		return service.ReportInput{}, fmt.Errorf("organization_id: %w", err)
	}
	reporterID, err := common.ParseOptionalUUID(r.ReportedByUserID)
	if err != nil {
		return service.ReportInput{}, fmt.Errorf("reported_by_user_id: %w", err)
	}
	assignee, err := common.ParseOptionalUUID(r.AssignedTo)
	if err != nil {
		return service.ReportInput{}, fmt.Errorf("assigned_to: %w", err)
	}

	return service.ReportInput{
		OrganizationID:        orgID,
		ReportedByUserID:      reporterID,
		ReportType:            r.ReportType,
		IncidentType:          r.IncidentType,
		Description:           r.Description,
		DateOfIncident:        r.DateOfIncident,
		LocationLat:           r.LocationLat,
		LocationLong:          r.LocationLong,
		Severity:              r.Severity,
		Industry:              r.Industry,
		ReporterName:          r.ReporterName,
		ReporterContact:       r.ReporterContact,
		Status:                r.Status,
		AssignedTo:            assignee,
		CauseOfDeath:          r.CauseOfDeath,
		RegulationClassBroken: r.RegulationClassBroken,
		FeedbackGiven:         r.FeedbackGiven,
	}, nil
}

// reportFilter собирает фильтр реестра из query параметров.
func reportFilter(c *gin.Context) (models.ReportFilter, error) {
	f := models.ReportFilter{
		Search:     c.Query("search"),
		Status:     c.Query("status"),
		Severity:   c.Query("severity"),
		ReportType: c.Query("report_type"),
		Industry:   c.Query("industry"),
		Escalated:  common.ParseBoolQuery(c, "escalated"),
	}

	var err error
	if f.DateFrom, err = common.ParseDateQuery(c, "date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = common.ParseDateQuery(c, "date_to"); err != nil {
		return f, err
	}
	if f.OrganizationID, err = common.ParseOptionalUUID(c.Query("organization_id")); err != nil {
		return f, fmt.Errorf("organization_id: %w", err)
	}

	f.Limit, f.Offset = common.GetPagination(c, reportsPageSize)
	return f, nil
}

// List обрабатывает GET /api/reports.
func (h *ReportHandler) List(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	f, err := reportFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	reports, total, err := h.reports.List(c.Request.Context(), identity, f)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, reports, total, f.Limit, f.Offset)
}

// Create обрабатывает POST /api/reports (JSON или multipart с files[]).
func (h *ReportHandler) Create(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var req reportRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}
	in, err := req.toInput()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.reports.Create(c.Request.Context(), identity, in, common.FormFiles(c, "files[]", "files"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Get обрабатывает GET /api/reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
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

	report, err := h.reports.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

// Update обрабатывает PUT /api/reports/:id.
func (h *ReportHandler) Update(c *gin.Context) {
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

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}
	in, err := req.toInput()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.reports.Update(c.Request.Context(), identity, id, in)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

// UpdateStatus обрабатывает PATCH /api/reports/:id/status.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
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

	var req struct {
		Status             string `json:"status"`
		AssignedTo         string `json:"assigned_to"`
		EscalationRequired bool   `json:"escalation_required"`
		FeedbackGiven      *bool  `json:"feedback_given"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}
	assignee, err := common.ParseOptionalUUID(req.AssignedTo)
	if err != nil {
		response.BadRequest(c, "assigned_to: "+err.Error())
		return
	}

	report, err := h.reports.UpdateStatus(c.Request.Context(), identity, id, service.StatusInput{
		Status:             req.Status,
		AssignedTo:         assignee,
		EscalationRequired: req.EscalationRequired,
		FeedbackGiven:      req.FeedbackGiven,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

// MarkRequired обрабатывает POST /api/reports/:id/escalation-required.
func (h *ReportHandler) MarkRequired(c *gin.Context) {
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

	report, err := h.reports.MarkRequired(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

// Delete обрабатывает DELETE /api/reports/:id.
func (h *ReportHandler) Delete(c *gin.Context) {
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

	if err := h.reports.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// AddAttachments обрабатывает POST /api/reports/:id/attachments.
func (h *ReportHandler) AddAttachments(c *gin.Context) {
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

	files := common.FormFiles(c, "files[]", "files", "file")
	if len(files) == 0 {
		response.BadRequest(c, "нужно приложить хотя бы один файл")
		return
	}

	result, err := h.reports.AddAttachments(c.Request.Context(), identity, id, files)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// RemoveAttachment обрабатывает DELETE /api/reports/:id/attachments/:uploadId.
func (h *ReportHandler) RemoveAttachment(c *gin.Context) {
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
	uploadID, err := common.ParseUUIDParam(c, "uploadId")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.reports.RemoveAttachment(c.Request.Context(), identity, id, uploadID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// AttachmentURL обрабатывает GET /api/reports/:id/attachments/:uploadId/url.
func (h *ReportHandler) AttachmentURL(c *gin.Context) {
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
	uploadID, err := common.ParseUUIDParam(c, "uploadId")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	url, err := h.reports.AttachmentURL(c.Request.Context(), identity, id, uploadID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"url": url})
}

// Export обрабатывает GET /api/reports/export и отдаёт .xlsx.
func (h *ReportHandler) Export(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	f, err := reportFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	data, err := h.reports.Export(c.Request.Context(), identity, f)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("hsse_reports_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// Stats обрабатывает GET /api/reports/stats.
func (h *ReportHandler) Stats(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	stats, err := h.reports.Stats(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

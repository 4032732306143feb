package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// HazardHandler реестр опасностей организации.
type HazardHandler struct {
	hazards *service.HazardService
}

// NewHazardHandler создаёт хэндлер.
func NewHazardHandler(hazards *service.HazardService) *HazardHandler {
	return &HazardHandler{hazards: hazards}
}

type hazardRequest struct {
	OrganizationID *uuid.UUID `json:"organization_id"`
	Description    string     `json:"description"`
	RiskLevel      string     `json:"risk_level"`
	MitigationPlan *string    `json:"mitigation_plan"`
	Status         string     `json:"status"`
}

func (r hazardRequest) toInput() service.HazardInput {
	return service.HazardInput{
		OrganizationID: r.OrganizationID,
		Description:    r.Description,
		RiskLevel:      r.RiskLevel,
		MitigationPlan: r.MitigationPlan,
		Status:         r.Status,
	}
}

// List обрабатывает GET /api/hazards.
func (h *HazardHandler) List(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c, 20)
	hazards, total, err := h.hazards.List(c.Request.Context(), identity, c.Query("status"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, hazards, total, limit, offset)
}

// Get обрабатывает GET /api/hazards/:id.
func (h *HazardHandler) Get(c *gin.Context) {
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

	hazard, err := h.hazards.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, hazard)
}

// Create обрабатывает POST /api/hazards.
func (h *HazardHandler) Create(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var req hazardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	hazard, err := h.hazards.Create(c.Request.Context(), identity, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, hazard)
}

// Update обрабатывает PUT /api/hazards/:id.
func (h *HazardHandler) Update(c *gin.Context) {
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

	var req hazardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	hazard, err := h.hazards.Update(c.Request.Context(), identity, id, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, hazard)
}

// Delete обрабатывает DELETE /api/hazards/:id.
func (h *HazardHandler) Delete(c *gin.Context) {
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

	if err := h.hazards.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// PlanHandler планы реагирования на чрезвычайные ситуации.
type PlanHandler struct {
	plans *service.PlanService
}

// NewPlanHandler создаёт хэндлер.
func NewPlanHandler(plans *service.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

type planRequest struct {
	OrganizationID *uuid.UUID `json:"organization_id"`
	PlanName       string     `json:"plan_name"`
	DocumentURL    *string    `json:"document_url"`
}

func (r planRequest) toInput() service.PlanInput {
	return service.PlanInput{
		OrganizationID: r.OrganizationID,
		PlanName:       r.PlanName,
		DocumentURL:    r.DocumentURL,
	}
}

// List обрабатывает GET /api/emergency-plans.
func (h *PlanHandler) List(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c, 20)
	plans, total, err := h.plans.List(c.Request.Context(), identity, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, plans, total, limit, offset)
}

// Get обрабатывает GET /api/emergency-plans/:id.
func (h *PlanHandler) Get(c *gin.Context) {
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

	plan, err := h.plans.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, plan)
}

// Create обрабатывает POST /api/emergency-plans.
func (h *PlanHandler) Create(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	plan, err := h.plans.Create(c.Request.Context(), identity, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, plan)
}

// Update обрабатывает PUT /api/emergency-plans/:id.
func (h *PlanHandler) Update(c *gin.Context) {
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

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	plan, err := h.plans.Update(c.Request.Context(), identity, id, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, plan)
}

// MarkReviewed обрабатывает POST /api/emergency-plans/:id/reviewed.
func (h *PlanHandler) MarkReviewed(c *gin.Context) {
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

	plan, err := h.plans.MarkReviewed(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, plan)
}

// Delete обрабатывает DELETE /api/emergency-plans/:id.
func (h *PlanHandler) Delete(c *gin.Context) {
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

	if err := h.plans.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// EscalationHandler эскалация отчётов и работа по ним.
type EscalationHandler struct {
	escalations *service.EscalationService
}

// NewEscalationHandler создаёт хэндлер.
func NewEscalationHandler(escalations *service.EscalationService) *EscalationHandler {
	return &EscalationHandler{escalations: escalations}
}

// Escalate обрабатывает POST /api/reports/:id/escalations.
func (h *EscalationHandler) Escalate(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}
	reportID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req struct {
		Reason                  string      `json:"escalation_reason"`
		Priority                string      `json:"escalation_priority"`
		ImmediateActionRequired bool        `json:"immediate_action_required"`
		EstimatedResolutionTime *time.Time  `json:"estimated_resolution_time"`
		AdditionalNotes         *string     `json:"additional_notes"`
		NotifyUserIDs           []uuid.UUID `json:"notify_users"`
		NotificationType        string      `json:"notification_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	result, err := h.escalations.Escalate(c.Request.Context(), identity, reportID, service.EscalateInput{
		Reason:                  req.Reason,
		Priority:                req.Priority,
		ImmediateActionRequired: req.ImmediateActionRequired,
		EstimatedResolutionTime: req.EstimatedResolutionTime,
		AdditionalNotes:         req.AdditionalNotes,
		NotifyUserIDs:           req.NotifyUserIDs,
		NotificationType:        req.NotificationType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListForReport обрабатывает GET /api/reports/:id/escalations.
func (h *EscalationHandler) ListForReport(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}
	reportID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	escalations, err := h.escalations.ListForReport(c.Request.Context(), identity, reportID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, escalations)
}

// Get обрабатывает GET /api/escalations/:id.
func (h *EscalationHandler) Get(c *gin.Context) {
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

	details, err := h.escalations.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, details)
}

// Resolve обрабатывает POST /api/escalations/:id/resolve.
func (h *EscalationHandler) Resolve(c *gin.Context) {
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
		Notes       string  `json:"resolution_notes"`
		ActionTaken *string `json:"action_taken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	escalation, err := h.escalations.Resolve(c.Request.Context(), identity, id, service.ResolveInput{
		Notes:       req.Notes,
		ActionTaken: req.ActionTaken,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, escalation)
}

// Reassign обрабатывает POST /api/escalations/:id/assign.
func (h *EscalationHandler) Reassign(c *gin.Context) {
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
		AssignedTo uuid.UUID `json:"assigned_to" binding:"required"`
		Notes      *string   `json:"assignment_notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "assigned_to обязателен")
		return
	}

	assignment, err := h.escalations.Reassign(c.Request.Context(), identity, id, req.AssignedTo, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, assignment)
}

// AddUpdate обрабатывает POST /api/escalations/:id/updates.
func (h *EscalationHandler) AddUpdate(c *gin.Context) {
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
		Type       string  `json:"update_type"`
		Content    string  `json:"content"`
		IsInternal bool    `json:"is_internal"`
		Priority   *string `json:"new_priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	update, err := h.escalations.AddUpdate(c.Request.Context(), identity, id, service.UpdateInput{
		Type:       req.Type,
		Content:    req.Content,
		IsInternal: req.IsInternal,
		Priority:   req.Priority,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, update)
}

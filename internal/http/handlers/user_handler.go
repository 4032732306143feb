package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// UserHandler администрирование пользователей и их членства.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler создаёт хэндлер.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type userRequest struct {
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	Phone          *string    `json:"phone"`
	Address        *string    `json:"address"`
	Role           string     `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	IsMinistry     bool       `json:"is_ministry"`
	IsActive       *bool      `json:"is_active"`
}

func (r userRequest) toInput() service.UserInput {
	return service.UserInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Password:       r.Password,
		Phone:          r.Phone,
		Address:        r.Address,
		Role:           r.Role,
		OrganizationID: r.OrganizationID,
		IsMinistry:     r.IsMinistry,
		IsActive:       r.IsActive,
	}
}

// List обрабатывает GET /api/admin/users.
func (h *UserHandler) List(c *gin.Context) {
	orgID, err := common.ParseOptionalUUID(c.Query("organization_id"))
	if err != nil {
		response.BadRequest(c, "organization_id: "+err.Error())
		return
	}

	limit, offset := common.GetPagination(c, 20)
	f := models.MemberFilter{
		Search:         c.Query("search"),
		Role:           c.Query("role"),
		OrganizationID: orgID,
		Status:         c.Query("status"),
		IsMinistry:     common.ParseBoolQuery(c, "is_ministry"),
		Limit:          limit,
		Offset:         offset,
	}

	members, total, err := h.users.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, members, total, limit, offset)
}

// Get обрабатывает GET /api/admin/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// Create обрабатывает POST /api/admin/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Update обрабатывает PUT /api/admin/users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// Delete обрабатывает DELETE /api/admin/users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
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

	if err := h.users.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// ToggleActive обрабатывает POST /api/admin/users/:id/toggle-active.
func (h *UserHandler) ToggleActive(c *gin.Context) {
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

	active, err := h.users.ToggleActive(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"is_active": active})
}

// Bulk обрабатывает POST /api/admin/users/bulk.
func (h *UserHandler) Bulk(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var req struct {
		Action string      `json:"action" binding:"required"`
		IDs    []uuid.UUID `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "action и user_ids обязательны")
		return
	}

	affected, err := h.users.Bulk(c.Request.Context(), identity, req.Action, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"affected": affected})
}

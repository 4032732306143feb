package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

const organizationsPageSize = 15

// OrganizationHandler справочник организаций.
type OrganizationHandler struct {
	organizations *service.OrganizationService
}

// NewOrganizationHandler создаёт хэндлер.
func NewOrganizationHandler(organizations *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{organizations: organizations}
}

type organizationRequest struct {
	Name          string `json:"name"`
	Industry      string `json:"industry"`
	ContactPerson string `json:"contact_person"`
	ContactEmail  string `json:"contact_email"`
}

func (r organizationRequest) toInput() service.OrganizationInput {
	return service.OrganizationInput{
		Name:          r.Name,
		Industry:      r.Industry,
		ContactPerson: r.ContactPerson,
		ContactEmail:  r.ContactEmail,
	}
}

// List обрабатывает GET /api/admin/organizations.
func (h *OrganizationHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c, organizationsPageSize)

	orgs, total, err := h.organizations.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, orgs, total, limit, offset)
}

// Get обрабатывает GET /api/admin/organizations/:id.
func (h *OrganizationHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	org, err := h.organizations.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, org)
}

// Create обрабатывает POST /api/admin/organizations.
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	org, err := h.organizations.Create(c.Request.Context(), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, org)
}

// Update обрабатывает PUT /api/admin/organizations/:id.
func (h *OrganizationHandler) Update(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	org, err := h.organizations.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, org)
}

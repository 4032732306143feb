package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// TrainingHandler каталог курсов и записи на них.
type TrainingHandler struct {
	trainings *service.TrainingService
}

// NewTrainingHandler создаёт хэндлер.
func NewTrainingHandler(trainings *service.TrainingService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings}
}

type trainingRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Industry    *string `json:"industry"`
}

func (r trainingRequest) toInput() service.TrainingInput {
	return service.TrainingInput{Name: r.Name, Description: r.Description, Industry: r.Industry}
}

// List обрабатывает GET /api/trainings.
func (h *TrainingHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c, service.TrainingPageSize)

	trainings, total, err := h.trainings.List(c.Request.Context(), c.Query("search"), c.Query("industry"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, trainings, total, limit, offset)
}

// Get обрабатывает GET /api/trainings/:id.
func (h *TrainingHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	details, err := h.trainings.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, details)
}

// Create обрабатывает POST /api/trainings.
func (h *TrainingHandler) Create(c *gin.Context) {
	var req trainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	training, err := h.trainings.Create(c.Request.Context(), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, training)
}

// Update обрабатывает PUT /api/trainings/:id.
func (h *TrainingHandler) Update(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req trainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректное тело запроса")
		return
	}

	training, err := h.trainings.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, training)
}

// Delete обрабатывает DELETE /api/trainings/:id.
func (h *TrainingHandler) Delete(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.trainings.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// Bulk обрабатывает POST /api/trainings/bulk.
func (h *TrainingHandler) Bulk(c *gin.Context) {
	var req struct {
		Action   string      `json:"action" binding:"required"`
		IDs      []uuid.UUID `json:"ids" binding:"required"`
		Industry string      `json:"industry"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "action и ids обязательны")
		return
	}

	affected, err := h.trainings.Bulk(c.Request.Context(), req.Action, req.IDs, req.Industry)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"affected": affected})
}

// Statistics обрабатывает GET /api/trainings/statistics.
func (h *TrainingHandler) Statistics(c *gin.Context) {
	stats, err := h.trainings.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// Enroll обрабатывает POST /api/trainings/:id/enrollments.
func (h *TrainingHandler) Enroll(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id обязателен")
		return
	}

	enrollment, err := h.trainings.Enroll(c.Request.Context(), id, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, enrollment)
}

// Unenroll обрабатывает DELETE /api/trainings/:id/enrollments/:userId.
func (h *TrainingHandler) Unenroll(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID, err := common.ParseUUIDParam(c, "userId")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.trainings.Unenroll(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// UpdateEnrollmentStatus обрабатывает PUT /api/trainings/:id/enrollments/:userId.
func (h *TrainingHandler) UpdateEnrollmentStatus(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID, err := common.ParseUUIDParam(c, "userId")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req struct {
		Status string `json:"completion_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "completion_status обязателен")
		return
	}

	enrollment, err := h.trainings.UpdateEnrollmentStatus(c.Request.Context(), id, userID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, enrollment)
}

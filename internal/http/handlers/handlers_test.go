package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/http/middleware"
	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/service"
	"github.com/ignatzorin/hsse-backend/internal/storage"
)

// withIdentity подставляет личность запроса вместо AuthMiddleware.
func withIdentity(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetIdentity(c, service.Identity{UserID: uuid.New(), Role: role})
		c.Next()
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestReportHandler_List_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil}
	r.GET("/reports", handler.List)

	req, _ := http.NewRequest("GET", "/reports", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w).Error.Code)
}

func TestReportHandler_List_InvalidDateFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil}
	r.GET("/reports", withIdentity(models.RoleAdmin), handler.List)

	req, _ := http.NewRequest("GET", "/reports?date_from=01-02-2024", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_Get_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil}
	r.GET("/reports/:id", withIdentity(models.RoleAdmin), handler.Get)

	req, _ := http.NewRequest("GET", "/reports/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_UpdateStatus_InvalidAssignee(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil}
	r.PATCH("/reports/:id/status", withIdentity(models.RoleAdmin), handler.UpdateStatus)

	body := bytes.NewBufferString(`{"status":"In Progress","assigned_to":"nobody"}`)
	req, _ := http.NewRequest("PATCH", "/reports/"+uuid.NewString()+"/status", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_AddAttachments_NoFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil}
	r.POST("/reports/:id/attachments", withIdentity(models.RoleAdmin), handler.AddAttachments)

	req, _ := http.NewRequest("POST", "/reports/"+uuid.NewString()+"/attachments", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscalationHandler_Escalate_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscalationHandler{escalations: nil}
	r.POST("/reports/:id/escalations", handler.Escalate)

	req, _ := http.NewRequest("POST", "/reports/"+uuid.NewString()+"/escalations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEscalationHandler_Escalate_MalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscalationHandler{escalations: nil}
	r.POST("/reports/:id/escalations", withIdentity(models.RoleManager), handler.Escalate)

	body := bytes.NewBufferString(`{"notify_users":["not-a-uuid"]}`)
	req, _ := http.NewRequest("POST", "/reports/"+uuid.NewString()+"/escalations", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscalationHandler_Reassign_MissingAssignee(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscalationHandler{escalations: nil}
	r.POST("/escalations/:id/assign", withIdentity(models.RoleAdmin), handler.Reassign)

	body := bytes.NewBufferString(`{"assignment_notes":"на смену"}`)
	req, _ := http.NewRequest("POST", "/escalations/"+uuid.NewString()+"/assign", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandler_MarkAsRead_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &NotificationHandler{notifications: nil}
	r.PUT("/notifications/:id/read", withIdentity(models.RoleEmployee), handler.MarkAsRead)

	req, _ := http.NewRequest("PUT", "/notifications/invalid-uuid/read", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandler_RecordDelivery_MissingStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &NotificationHandler{notifications: nil}
	r.PUT("/dispatcher/notifications/:id/status", handler.RecordDelivery)

	req, _ := http.NewRequest("PUT", "/dispatcher/notifications/"+uuid.NewString()+"/status", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatbotHandler_IngestScraped_MissingItems(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ChatbotHandler{}
	r.POST("/chatbot/ai-scrapers", handler.IngestScraped)

	req, _ := http.NewRequest("POST", "/chatbot/ai-scrapers", bytes.NewBufferString(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatbotHandler_Status_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ChatbotHandler{}
	r.GET("/chatbot/reports/:id/status", handler.Status)

	req, _ := http.NewRequest("GET", "/chatbot/reports/42/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_Delete_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &UserHandler{users: nil}
	r.DELETE("/admin/users/:id", handler.Delete)

	req, _ := http.NewRequest("DELETE", "/admin/users/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_List_InvalidOrganization(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &UserHandler{users: nil}
	r.GET("/admin/users", handler.List)

	req, _ := http.NewRequest("GET", "/admin/users?organization_id=abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrainingHandler_Enroll_MissingUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TrainingHandler{trainings: nil}
	r.POST("/trainings/:id/enrollments", handler.Enroll)

	req, _ := http.NewRequest("POST", "/trainings/"+uuid.NewString()+"/enrollments", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHazardHandler_List_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &HazardHandler{hazards: nil}
	r.GET("/hazards", handler.List)

	req, _ := http.NewRequest("GET", "/hazards", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlanHandler_MarkReviewed_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PlanHandler{plans: nil}
	r.POST("/emergency-plans/:id/reviewed", withIdentity(models.RoleManager), handler.MarkReviewed)

	req, _ := http.NewRequest("POST", "/emergency-plans/invalid/reviewed", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWSHandler_MissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewWSHandler(nil, service.NewTokenManager("a", "b", time.Minute, time.Hour))
	r.GET("/ws", handler.Handle)

	req, _ := http.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSHandler_InvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewWSHandler(nil, service.NewTokenManager("a", "b", time.Minute, time.Hour))
	r.GET("/ws", handler.Handle)

	req, _ := http.NewRequest("GET", "/ws?token=garbage", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthHandler_Healthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.ExpectPing()

	r := gin.New()
	handler := NewHealthHandler(sqlx.NewDb(sqlDB, "sqlmock"), "local")
	r.GET("/health", handler.Health)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "local", body.Checks["storage"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.ExpectPing().WillReturnError(assert.AnError)

	r := gin.New()
	handler := NewHealthHandler(sqlx.NewDb(sqlDB, "sqlmock"), "s3")
	r.GET("/health", handler.Health)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func newFileFixture(t *testing.T) (*gin.Engine, *storage.LocalStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost/files", "signing-secret", 1024)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/files/*key", NewFileHandler(store).Serve)
	return r, store
}

func TestFileHandler_ServesSignedFile(t *testing.T) {
	r, store := newFileFixture(t)
	key := "reports/abc/photo.png"
	_, err := store.Put(context.Background(), key, bytes.NewReader([]byte("png-bytes")), 9, "image/png")
	require.NoError(t, err)

	signed, err := store.TemporaryURL(context.Background(), key, time.Minute)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", signed[len("http://localhost"):], nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestFileHandler_RejectsBadSignature(t *testing.T) {
	r, _ := newFileFixture(t)
	expires := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)

	req, _ := http.NewRequest("GET", "/files/reports/abc/photo.png?expires="+expires+"&signature=deadbeef", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFileHandler_MissingFile(t *testing.T) {
	r, store := newFileFixture(t)
	signed, err := store.TemporaryURL(context.Background(), "reports/none.png", time.Minute)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", signed[len("http://localhost"):], nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

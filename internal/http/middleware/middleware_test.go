package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/metrics"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

func newTokenManager() *service.TokenManager {
	return service.NewTokenManager("access-secret-for-tests-0123456789", "refresh-secret-for-tests-0123456789", time.Minute, time.Hour)
}

func perform(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(newTokenManager()), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestAuthMiddleware_StoresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTokenManager()
	orgID := uuid.New()
	identity := service.Identity{UserID: uuid.New(), Role: models.RoleManager, OrganizationID: &orgID}
	pair, _, _, err := tokens.GeneratePair(identity)
	require.NoError(t, err)

	var got service.Identity
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		got = c.MustGet(ContextIdentityKey).(service.Identity)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := perform(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity.UserID, got.UserID)
	assert.Equal(t, models.RoleManager, got.Role)
	require.NotNil(t, got.OrganizationID)
	assert.Equal(t, orgID, *got.OrganizationID)
}

func TestAuthMiddleware_RejectsRefreshToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTokenManager()
	pair, _, _, err := tokens.GeneratePair(service.Identity{UserID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	w := perform(r, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin allowed", models.RoleAdmin, http.StatusOK},
		{"employee forbidden", models.RoleEmployee, http.StatusForbidden},
		{"no identity", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", func(c *gin.Context) {
				if tt.role != "" {
					c.Set(ContextRoleKey, tt.role)
				}
				c.Next()
			}, RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := perform(r, httptest.NewRequest(http.MethodGet, "/admin", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		expected string
		header   string
		bearer   string
		want     int
	}{
		{"valid header", "secret-key", "secret-key", "", http.StatusOK},
		{"valid bearer", "secret-key", "", "secret-key", http.StatusOK},
		{"wrong key", "secret-key", "other", "", http.StatusUnauthorized},
		{"missing key", "secret-key", "", "", http.StatusUnauthorized},
		{"not configured", "", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/chatbot/reports", APIKeyMiddleware("chatbot", tt.expected), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/chatbot/reports", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := perform(r, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestTraceMiddleware_EchoesIncomingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextTraceKey)) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceHeader, "trace-123")
	w := perform(r, req)

	assert.Equal(t, "trace-123", w.Header().Get(TraceHeader))
	assert.Equal(t, "trace-123", w.Body.String())
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, httptest.NewRequest(http.MethodGet, "/ping", nil))

	_, err := uuid.Parse(w.Header().Get(TraceHeader))
	assert.NoError(t, err)
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/reports/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusBadRequest, perform(r, httptest.NewRequest(http.MethodGet, "/reports/not-a-uuid", nil)).Code)
	assert.Equal(t, http.StatusOK, perform(r, httptest.NewRequest(http.MethodGet, "/reports/"+uuid.NewString(), nil)).Code)
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/public/reports", RateLimitMiddleware("test_public", 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 2; i++ {
		w := perform(r, httptest.NewRequest(http.MethodPost, "/public/reports", nil))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := perform(r, httptest.NewRequest(http.MethodPost, "/public/reports", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/reports/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/reports/:id", "200")
	before := testutil.ToFloat64(counter)

	perform(r, httptest.NewRequest(http.MethodGet, "/reports/"+uuid.NewString(), nil))
	perform(r, httptest.NewRequest(http.MethodGet, "/reports/"+uuid.NewString(), nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestErrorHandler_RecoversPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := perform(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://panel.example.com"}))
	r.GET("/reports", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/reports", nil)
	req.Header.Set("Origin", "https://panel.example.com")
	w := perform(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://panel.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

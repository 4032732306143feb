package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hsse-backend/internal/pkg/apperror"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	return c, w
}

func TestError_ValidationCarriesFields(t *testing.T) {
	c, w := newContext()

	Error(c, apperror.Validation(map[string]string{"date_of_incident": "дата не может быть в будущем"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "дата не может быть в будущем", body.Error.Fields["date_of_incident"])
}

func TestError_ConflictStatus(t *testing.T) {
	c, w := newContext()

	Error(c, apperror.ErrReportAlreadyEscalated)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestError_UnknownErrorIsMasked(t *testing.T) {
	c, w := newContext()

	Error(c, errors.New("pq: relation \"reports\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.Contains(t, w.Body.String(), "внутренняя ошибка сервера")
}

func TestPaginated_HasMore(t *testing.T) {
	c, w := newContext()

	Paginated(c, []int{1, 2}, 5, 2, 0)

	var body PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Pagination.HasMore)
	assert.Equal(t, 5, body.Pagination.Total)
}

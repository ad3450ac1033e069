package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

type activityLogServiceMock struct {
	lastFilter models.ActivityLogFilter
	called     bool
}

func (m *activityLogServiceMock) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, *models.Pagination, error) {
	m.called = true
	m.lastFilter = filter
	return []models.ActivityLog{{ID: "a1", Action: models.ActivityEmployeeImport}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func TestActivityLogHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &activityLogServiceMock{}
	handler := NewActivityLogHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/activity-logs?action=IMPORTACAO_USUARIOS&from=2024-01-01&to=2024-02-01T00:00:00Z", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ActivityEmployeeImport, mockSvc.lastFilter.Action)
	require.NotNil(t, mockSvc.lastFilter.From)
	require.NotNil(t, mockSvc.lastFilter.To)
	assert.Equal(t, 2024, mockSvc.lastFilter.From.Year())
	assert.Equal(t, 1, mockSvc.lastFilter.Page)
}

func TestActivityLogHandlerInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &activityLogServiceMock{}
	handler := NewActivityLogHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/activity-logs?from=yesterday", nil)

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}

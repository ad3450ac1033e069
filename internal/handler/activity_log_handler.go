package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

type activityLogService interface {
	List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, *models.Pagination, error)
}

// ActivityLogHandler serves the HR activity feed.
type ActivityLogHandler struct {
	service activityLogService
}

// NewActivityLogHandler constructs an activity log handler.
func NewActivityLogHandler(svc activityLogService) *ActivityLogHandler {
	return &ActivityLogHandler{service: svc}
}

// List godoc
// @Summary List activity logs
// @Tags Activity Logs
// @Produce json
// @Param action query string false "Action filter"
// @Param actor_id query string false "Actor filter"
// @Param from query string false "RFC3339 or YYYY-MM-DD lower bound"
// @Param to query string false "RFC3339 or YYYY-MM-DD upper bound"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /activity-logs [get]
func (h *ActivityLogHandler) List(c *gin.Context) {
	filter := models.ActivityLogFilter{
		Action:  c.Query("action"),
		ActorID: c.Query("actor_id"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be RFC3339 or YYYY-MM-DD")
}

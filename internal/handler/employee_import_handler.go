package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

type employeeImportService interface {
	Preview(ctx context.Context, actor models.Actor, fileName string, data []byte) (*service.ImportSession, error)
	Get(ctx context.Context, id string) (*service.ImportSession, error)
	SetDecision(ctx context.Context, id string, index int, resolve bool) (*service.ImportSession, error)
	ToggleDecision(ctx context.Context, id string, index int) (*service.ImportSession, error)
	SetAllDecisions(ctx context.Context, id string, resolve bool) (*service.ImportSession, error)
	Commit(ctx context.Context, actor models.Actor, id string) (*service.ImportSession, error)
	Abandon(ctx context.Context, id string) error
	ExportReport(ctx context.Context, id, format string) (*service.File, error)
	Template() (*service.File, error)
}

// DecisionRequest carries an operator decision for one or all conflicts.
type DecisionRequest struct {
	Resolve *bool `json:"resolve" binding:"required"`
}

// EmployeeImportHandler exposes the bulk employee import flow.
type EmployeeImportHandler struct {
	service        employeeImportService
	maxUploadBytes int64
}

// NewEmployeeImportHandler creates the import handler. Uploads larger than
// maxUploadBytes are refused before reaching the service.
func NewEmployeeImportHandler(svc employeeImportService, maxUploadBytes int64) *EmployeeImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	return &EmployeeImportHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// Template godoc
// @Summary Download import template
// @Tags Employee Import
// @Produce text/csv
// @Success 200 {file} file
// @Router /employees/import/template [get]
func (h *EmployeeImportHandler) Template(c *gin.Context) {
	file, err := h.service.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Data)
}

// Upload godoc
// @Summary Upload employee spreadsheet
// @Description Analyzes a CSV or XLSX file. Uploads without conflicts are committed immediately; otherwise the session waits for decisions.
// @Tags Employee Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /employees/import [post]
func (h *EmployeeImportHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1024*1024)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > h.maxUploadBytes {
		response.Error(c, appErrors.ErrPayloadTooLarge)
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read file"))
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read file"))
		return
	}

	session, err := h.service.Preview(c.Request.Context(), actor, header.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// Get godoc
// @Summary Get import session
// @Tags Employee Import
// @Produce json
// @Param session path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /employees/import/{session} [get]
func (h *EmployeeImportHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// SetDecision godoc
// @Summary Decide one conflict
// @Description resolve=true deactivates the existing employee and creates the uploaded one; false keeps the existing employee.
// @Tags Employee Import
// @Accept json
// @Produce json
// @Param session path string true "Session ID"
// @Param index path int true "Conflict index"
// @Param payload body DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/import/{session}/conflicts/{index} [put]
func (h *EmployeeImportHandler) SetDecision(c *gin.Context) {
	index, err := indexParam(c, "index")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	session, err := h.service.SetDecision(c.Request.Context(), c.Param("session"), index, *req.Resolve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// ToggleDecision godoc
// @Summary Toggle one conflict decision
// @Tags Employee Import
// @Produce json
// @Param session path string true "Session ID"
// @Param index path int true "Conflict index"
// @Success 200 {object} response.Envelope
// @Router /employees/import/{session}/conflicts/{index}/toggle [post]
func (h *EmployeeImportHandler) ToggleDecision(c *gin.Context) {
	index, err := indexParam(c, "index")
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.service.ToggleDecision(c.Request.Context(), c.Param("session"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// SetAllDecisions godoc
// @Summary Decide every conflict at once
// @Tags Employee Import
// @Accept json
// @Produce json
// @Param session path string true "Session ID"
// @Param payload body DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /employees/import/{session}/conflicts [put]
func (h *EmployeeImportHandler) SetAllDecisions(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	session, err := h.service.SetAllDecisions(c.Request.Context(), c.Param("session"), *req.Resolve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Commit godoc
// @Summary Commit import
// @Description Applies the session with its current decisions and returns the outcome report. Repeated calls return the same report.
// @Tags Employee Import
// @Produce json
// @Param session path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /employees/import/{session}/commit [post]
func (h *EmployeeImportHandler) Commit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.service.Commit(c.Request.Context(), actor, c.Param("session"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Abandon godoc
// @Summary Abandon import
// @Tags Employee Import
// @Param session path string true "Session ID"
// @Success 204
// @Router /employees/import/{session} [delete]
func (h *EmployeeImportHandler) Abandon(c *gin.Context) {
	if err := h.service.Abandon(c.Request.Context(), c.Param("session")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Report godoc
// @Summary Download outcome report
// @Tags Employee Import
// @Produce text/csv
// @Produce application/pdf
// @Param session path string true "Session ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 412 {object} response.Envelope
// @Router /employees/import/{session}/report [get]
func (h *EmployeeImportHandler) Report(c *gin.Context) {
	file, err := h.service.ExportReport(c.Request.Context(), c.Param("session"), c.DefaultQuery("format", service.ReportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Data)
}

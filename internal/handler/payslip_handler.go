package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

type payslipService interface {
	Stage(ctx context.Context, actor models.Actor, files []service.PayslipFile) (*service.PayslipSession, error)
	Get(ctx context.Context, id string) (*service.PayslipSession, error)
	SetReplace(ctx context.Context, id string, index int, replace bool) (*service.PayslipSession, error)
	Commit(ctx context.Context, actor models.Actor, id string) (*service.PayslipSession, error)
	Abandon(ctx context.Context, id string) error
	ListByEmployee(ctx context.Context, employeeID string) ([]models.Payslip, error)
	DownloadLink(ctx context.Context, payslipID string) (*service.PayslipDownload, error)
	OpenDownload(token string) (*os.File, string, error)
}

// ReplaceRequest opts a duplicate payslip in or out of replacement.
type ReplaceRequest struct {
	Replace *bool `json:"replace" binding:"required"`
}

// PayslipHandler exposes batch payslip ingestion and downloads.
type PayslipHandler struct {
	service         payslipService
	maxRequestBytes int64
}

// NewPayslipHandler constructs the payslip handler.
func NewPayslipHandler(svc payslipService, maxRequestBytes int64) *PayslipHandler {
	if maxRequestBytes <= 0 {
		maxRequestBytes = 512 * 1024 * 1024
	}
	return &PayslipHandler{service: svc, maxRequestBytes: maxRequestBytes}
}

// Stage godoc
// @Summary Upload a payslip batch
// @Description Files are named <matricula>-<MM>-<YYYY>.pdf and matched to employees by matricula.
// @Tags Payslips
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Payslip files"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payslips/batch [post]
func (h *PayslipHandler) Stage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	headers := form.File["files"]
	files := make([]service.PayslipFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read "+header.Filename))
			return
		}
		opened = append(opened, src)
		files = append(files, service.PayslipFile{Name: header.Filename, Content: src})
	}

	session, err := h.service.Stage(c.Request.Context(), actor, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get payslip batch
// @Tags Payslips
// @Produce json
// @Param session path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /payslips/batch/{session} [get]
func (h *PayslipHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// SetReplace godoc
// @Summary Replace a stored payslip
// @Tags Payslips
// @Accept json
// @Produce json
// @Param session path string true "Session ID"
// @Param index path int true "File index"
// @Param payload body ReplaceRequest true "Replace flag"
// @Success 200 {object} response.Envelope
// @Router /payslips/batch/{session}/files/{index} [put]
func (h *PayslipHandler) SetReplace(c *gin.Context) {
	index, err := indexParam(c, "index")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	session, err := h.service.SetReplace(c.Request.Context(), c.Param("session"), index, *req.Replace)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Commit godoc
// @Summary Commit payslip batch
// @Tags Payslips
// @Produce json
// @Param session path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /payslips/batch/{session}/commit [post]
func (h *PayslipHandler) Commit(c *gin.Context) {
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
// @Summary Abandon payslip batch
// @Tags Payslips
// @Param session path string true "Session ID"
// @Success 204
// @Router /payslips/batch/{session} [delete]
func (h *PayslipHandler) Abandon(c *gin.Context) {
	if err := h.service.Abandon(c.Request.Context(), c.Param("session")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByEmployee godoc
// @Summary List employee payslips
// @Tags Payslips
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/payslips [get]
func (h *PayslipHandler) ListByEmployee(c *gin.Context) {
	payslips, err := h.service.ListByEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payslips, nil)
}

// DownloadLink godoc
// @Summary Create a temporary download link
// @Tags Payslips
// @Produce json
// @Param id path string true "Payslip ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payslips/{id}/download-url [get]
func (h *PayslipHandler) DownloadLink(c *gin.Context) {
	link, err := h.service.DownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a payslip with a signed token
// @Tags Payslips
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /payslips/download [get]
func (h *PayslipHandler) Download(c *gin.Context) {
	file, name, err := h.service.OpenDownload(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	response.Stream(c, name, "application/pdf", file)
}

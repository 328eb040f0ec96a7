package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"coursehub/internal/errors"
	"coursehub/internal/service"
)

// PDFHandler uploads assignment PDFs and hands out links to them.
type PDFHandler struct {
	pdfService service.PDFService
}

// NewPDFHandler creates a new PDF handler.
func NewPDFHandler(pdfService service.PDFService) *PDFHandler {
	return &PDFHandler{pdfService: pdfService}
}

// UploadResponse carries the public path of an uploaded PDF.
type UploadResponse struct {
	PDFURL string `json:"pdfUrl"`
}

// Upload godoc
// @Summary Upload a PDF
// @Tags pdf
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param subjectName formData string true "Subject the PDF belongs to"
// @Param pdfFile formData file true "PDF file"
// @Success 201 {object} UploadResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /pdf/ [post]
func (h *PDFHandler) Upload(c echo.Context) error {
	file, err := c.FormFile("pdfFile")
	if err != nil {
		return respondError(fmt.Errorf("%w: pdfFile is required", errors.ErrValidation))
	}
	body, err := file.Open()
	if err != nil {
		return respondError(fmt.Errorf("open upload: %w", err))
	}
	defer body.Close()

	key, err := h.pdfService.Upload(c.Request().Context(), c.FormValue("subjectName"), file.Filename, file.Size, body)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, UploadResponse{PDFURL: key})
}

// View godoc
// @Summary Open a PDF inline
// @Tags pdf
// @Security BearerAuth
// @Param subject path string true "Subject slug"
// @Param filename path string true "File name"
// @Success 307
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /pdf/{subject}/{filename} [get]
func (h *PDFHandler) View(c echo.Context) error {
	return h.redirect(c, false)
}

// Download godoc
// @Summary Download a PDF
// @Tags pdf
// @Security BearerAuth
// @Param subject path string true "Subject slug"
// @Param filename path string true "File name"
// @Success 307
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /pdf/download/{subject}/{filename} [get]
func (h *PDFHandler) Download(c echo.Context) error {
	return h.redirect(c, true)
}

func (h *PDFHandler) redirect(c echo.Context, download bool) error {
	url, err := h.pdfService.URL(c.Request().Context(), c.Param("subject"), c.Param("filename"), download)
	if err != nil {
		return respondError(err)
	}
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

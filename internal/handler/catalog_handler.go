package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"coursehub/internal/service"
)

// CatalogHandler serves departments and subjects.
type CatalogHandler struct {
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// CreateSubjectRequest represents a new subject.
type CreateSubjectRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	DepartmentIDs []uint `json:"departmentIds" validate:"dive,gt=0"`
}

// Departments godoc
// @Summary List departments
// @Tags catalog
// @Produce json
// @Success 200 {array} model.Department
// @Failure 500 {object} errors.ErrorResponse
// @Router /departments [get]
func (h *CatalogHandler) Departments(c echo.Context) error {
	departments, err := h.catalogService.ListDepartments(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, departments)
}

// Subjects godoc
// @Summary List subjects
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param departmentId query int false "Only subjects taught in this department"
// @Success 200 {array} model.Subject
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /subjects/ [get]
func (h *CatalogHandler) Subjects(c echo.Context) error {
	departmentID, err := parseID("departmentId", c.QueryParam("departmentId"))
	if err != nil {
		return err
	}

	subjects, err := h.catalogService.ListSubjects(c.Request().Context(), departmentID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, subjects)
}

// AddSubject godoc
// @Summary Create a subject
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateSubjectRequest true "Subject data"
// @Success 201 {object} model.Subject
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /subjects/addSubject [post]
func (h *CatalogHandler) AddSubject(c echo.Context) error {
	var req CreateSubjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	subject, err := h.catalogService.CreateSubject(c.Request().Context(), req.Name, req.DepartmentIDs)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, subject)
}

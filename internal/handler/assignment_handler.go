package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"coursehub/internal/service"
)

// AssignmentHandler handles assignment and comment endpoints.
type AssignmentHandler struct {
	assignmentService service.AssignmentService
}

// NewAssignmentHandler creates a new assignment handler.
func NewAssignmentHandler(assignmentService service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// CreateAssignmentRequest represents a new assignment.
type CreateAssignmentRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=5000"`
	SubjectID    uint       `json:"subjectId" validate:"required"`
	DepartmentID uint       `json:"departmentId"`
	DueDate      *time.Time `json:"dueDate"`
	PDFURL       string     `json:"pdfUrl" validate:"max=512"`
}

// DeleteAssignmentRequest identifies the assignment to delete.
type DeleteAssignmentRequest struct {
	AssignmentID uint `json:"assignmentId" validate:"required"`
}

// AddCommentRequest represents a new comment.
type AddCommentRequest struct {
	AssignmentID uint   `json:"assignmentId" validate:"required"`
	Content      string `json:"content" validate:"required"`
}

// List godoc
// @Summary List assignments visible to the caller
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param subjectId query int false "Filter by subject"
// @Success 200 {array} model.Assignment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /assignments/ [get]
func (h *AssignmentHandler) List(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	subjectID, err := parseID("subjectId", c.QueryParam("subjectId"))
	if err != nil {
		return err
	}

	assignments, err := h.assignmentService.List(c.Request().Context(), identity, subjectID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, assignments)
}

// AddAssignment godoc
// @Summary Create an assignment
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAssignmentRequest true "Assignment data"
// @Success 201 {object} model.Assignment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /assignments/addAssignment [post]
func (h *AssignmentHandler) AddAssignment(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req CreateAssignmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	assignment, err := h.assignmentService.Create(c.Request().Context(), identity, service.CreateAssignmentInput{
		Title:        req.Title,
		Description:  req.Description,
		SubjectID:    req.SubjectID,
		DepartmentID: req.DepartmentID,
		DueDate:      req.DueDate,
		PDFKey:       req.PDFURL,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, assignment)
}

// DeleteAssignment godoc
// @Summary Delete an assignment
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteAssignmentRequest true "Assignment to delete"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /assignments/deleteAssignment [delete]
func (h *AssignmentHandler) DeleteAssignment(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req DeleteAssignmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.assignmentService.Delete(c.Request().Context(), identity, req.AssignmentID); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "assignment deleted"})
}

// AddComment godoc
// @Summary Comment on an assignment
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddCommentRequest true "Comment"
// @Success 201 {object} model.Comment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /assignments/addComment [post]
func (h *AssignmentHandler) AddComment(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req AddCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.assignmentService.AddComment(c.Request().Context(), identity, req.AssignmentID, req.Content)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// Comments godoc
// @Summary List the comments of an assignment
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Success 200 {array} model.Comment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /assignments/{id}/comments [get]
func (h *AssignmentHandler) Comments(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	assignmentID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	comments, err := h.assignmentService.ListComments(c.Request().Context(), identity, assignmentID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, comments)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param commentId path int true "Comment ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /assignments/deleteComment/{commentId} [delete]
func (h *AssignmentHandler) DeleteComment(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentId")
	if err != nil {
		return err
	}

	if err := h.assignmentService.DeleteComment(c.Request().Context(), identity, commentID); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "comment deleted"})
}

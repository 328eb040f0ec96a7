package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nyaruka/phonenumbers"

	"coursehub/internal/auth"
	"coursehub/internal/errors"
	"coursehub/internal/model"
	"coursehub/internal/repository"
	"coursehub/internal/service"
)

// TeamRequestHandler handles the JOIN/RECRUIT request endpoints.
type TeamRequestHandler struct {
	teamRequestService service.TeamRequestService
}

// NewTeamRequestHandler creates a new team request handler.
func NewTeamRequestHandler(teamRequestService service.TeamRequestService) *TeamRequestHandler {
	return &TeamRequestHandler{teamRequestService: teamRequestService}
}

// CreateTeamRequestRequest represents a new team request. WhatsApp is the
// legacy name of ContactHandle and is used only when ContactHandle is empty;
// international phone numbers are stored in E.164 form, anything else as typed.
type CreateTeamRequestRequest struct {
	AssignmentID    uint   `json:"assignmentId" validate:"required"`
	Type            string `json:"type" validate:"required,oneof=JOIN RECRUIT"`
	Message         string `json:"message" validate:"max=1000"`
	ContactHandle   string `json:"contactHandle" validate:"max=100"`
	WhatsApp        string `json:"whatsApp" validate:"max=100"`
	CurrentTeamSize *int   `json:"currentTeamSize" validate:"omitempty,min=1"`
}

// List godoc
// @Summary List team requests
// @Tags team-requests
// @Produce json
// @Security BearerAuth
// @Param assignmentId query int false "Filter by assignment"
// @Param status query string false "Filter by status" Enums(OPEN, MATCHED, WITHDRAWN, EXPIRED)
// @Param mine query bool false "Only the caller's own requests"
// @Success 200 {array} model.TeamRequest
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /team-requests [get]
func (h *TeamRequestHandler) List(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	filter, err := listFilter(c, identity)
	if err != nil {
		return err
	}

	requests := make([]model.TeamRequest, 0)
	for req, err := range h.teamRequestService.List(c.Request().Context(), filter) {
		if err != nil {
			return respondError(err)
		}
		requests = append(requests, req)
	}
	return c.JSON(http.StatusOK, requests)
}

func listFilter(c echo.Context, identity auth.Identity) (repository.TeamRequestFilter, error) {
	var filter repository.TeamRequestFilter

	assignmentID, err := parseID("assignmentId", c.QueryParam("assignmentId"))
	if err != nil {
		return filter, err
	}
	if assignmentID != 0 {
		filter.AssignmentID = &assignmentID
	}

	if raw := c.QueryParam("status"); raw != "" {
		status, ok := model.ParseTeamRequestStatus(raw)
		if !ok {
			return filter, respondError(fmt.Errorf("%w: unknown status %q", errors.ErrValidation, raw))
		}
		filter.Status = &status
	}

	if !identity.IsAssistant() {
		filter.DepartmentID = &identity.DepartmentID
	}

	if raw := c.QueryParam("mine"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, respondError(fmt.Errorf("%w: mine must be a boolean", errors.ErrValidation))
		}
		if mine {
			filter.RequesterID = &identity.UserID
		}
	}
	return filter, nil
}

// Create godoc
// @Summary Create a team request
// @Tags team-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTeamRequestRequest true "Team request"
// @Success 201 {object} model.TeamRequest
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /team-requests [post]
func (h *TeamRequestHandler) Create(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req CreateTeamRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	contact := req.ContactHandle
	if contact == "" {
		contact = normalizePhone(req.WhatsApp)
	}

	created, err := h.teamRequestService.Create(c.Request().Context(), identity, service.CreateTeamRequestInput{
		AssignmentID:    req.AssignmentID,
		Type:            req.Type,
		Message:         req.Message,
		ContactHandle:   contact,
		CurrentTeamSize: req.CurrentTeamSize,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Match godoc
// @Summary Match one of the caller's open requests
// @Tags team-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Team request ID"
// @Success 200 {object} model.TeamRequest
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /team-requests/{id}/match [post]
func (h *TeamRequestHandler) Match(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	matched, err := h.teamRequestService.Match(c.Request().Context(), identity, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, matched)
}

// Withdraw godoc
// @Summary Withdraw one of the caller's open requests
// @Tags team-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Team request ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /team-requests/{id} [delete]
func (h *TeamRequestHandler) Withdraw(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.teamRequestService.Withdraw(c.Request().Context(), identity, id); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "team request withdrawn"})
}

// Events godoc
// @Summary Audit trail of a team request
// @Tags team-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Team request ID"
// @Success 200 {array} model.TeamRequestEvent
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /team-requests/{id}/events [get]
func (h *TeamRequestHandler) Events(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	events, err := h.teamRequestService.Events(c.Request().Context(), identity, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, events)
}

// normalizePhone formats raw as E.164 when it parses as an international
// number and otherwise returns it trimmed.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

package router

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"coursehub/internal/auth"
	"coursehub/internal/config"
	"coursehub/internal/handler"
	"coursehub/internal/model"
)

// multipartOverhead is allowed on top of the PDF size limit for form fields
// and part headers.
const multipartOverhead = 1 << 20

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth        *handler.AuthHandler
	Catalog     *handler.CatalogHandler
	Assignment  *handler.AssignmentHandler
	PDF         *handler.PDFHandler
	TeamRequest *handler.TeamRequestHandler
	Health      *handler.HealthHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, guard *auth.Guard, h Handlers, log logrus.FieldLogger) {
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", h.Health.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/authenticate/signup", h.Auth.Signup)
	api.POST("/authenticate/login", h.Auth.Login)
	api.GET("/departments", h.Catalog.Departments)

	// Secured routes (require a valid bearer token)
	secured := api.Group("", guard.Middleware())
	assistantOnly := auth.Require(auth.RequireLevel(model.LevelAssistant))

	secured.POST("/authenticate/logout", h.Auth.Logout)
	secured.GET("/authenticate/me", h.Auth.Me)

	// Catalog routes
	secured.GET("/subjects/", h.Catalog.Subjects)
	secured.POST("/subjects/addSubject", h.Catalog.AddSubject, assistantOnly)

	// Assignment routes
	secured.GET("/assignments/", h.Assignment.List)
	secured.POST("/assignments/addAssignment", h.Assignment.AddAssignment, assistantOnly)
	secured.DELETE("/assignments/deleteAssignment", h.Assignment.DeleteAssignment, assistantOnly)
	secured.POST("/assignments/addComment", h.Assignment.AddComment)
	secured.GET("/assignments/:id/comments", h.Assignment.Comments)
	secured.DELETE("/assignments/deleteComment/:commentId", h.Assignment.DeleteComment)

	// PDF routes
	bodyLimit := middleware.BodyLimit(strconv.FormatInt(cfg.PDFMaxBytes+multipartOverhead, 10) + "B")
	secured.POST("/pdf/", h.PDF.Upload, bodyLimit)
	secured.GET("/pdf/download/:subject/:filename", h.PDF.Download)
	secured.GET("/pdf/:subject/:filename", h.PDF.View)

	// Team request routes
	secured.GET("/team-requests", h.TeamRequest.List)
	secured.POST("/team-requests", h.TeamRequest.Create)
	secured.POST("/team-requests/:id/match", h.TeamRequest.Match)
	secured.GET("/team-requests/:id/events", h.TeamRequest.Events)
	secured.DELETE("/team-requests/:id", h.TeamRequest.Withdraw)
}

func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			if id, ok := auth.IdentityFromEcho(c); ok {
				entry = entry.WithField("user_id", id.UserID)
			}
			switch {
			case v.Status >= 500:
				entry.WithError(v.Error).Error("request failed")
			case v.Error != nil:
				entry.WithError(v.Error).Warn("request rejected")
			default:
				entry.Info("request")
			}
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hc1200093-glitch/L-eclaireur/internal/export"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Registry SessionRegistry
	Probe    BackendProbe
	// Savers maps a save target (TargetDirectory, TargetBucket) to its store.
	Savers  map[string]export.Saver
	Logger  *zap.Logger
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Session   SessionHandler
	Analysis  AnalysisHandler
	Export    ExportHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Probe, deps.Registry),
		Session:   NewSessionHandler(deps.Registry),
		Analysis:  NewAnalysisHandler(deps.Registry),
		Export:    NewExportHandler(deps.Registry, deps.Savers, deps.Logger),
		WebSocket: NewWebSocketHandler(deps.Registry, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Session lifecycle and intake
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/files", handlers.Session.HandleStageFiles)
	sessionGroup.DELETE("/:id/files/:index", handlers.Session.HandleRemoveFile)
	sessionGroup.POST("/:id/reset", handlers.Session.HandleResetSession)

	// Analysis
	sessionGroup.POST("/:id/analyze", handlers.Analysis.HandleStartAnalysis)
	sessionGroup.POST("/:id/cancel", handlers.Analysis.HandleCancelAnalysis)
	sessionGroup.GET("/:id/result", handlers.Analysis.HandleGetResult)
	sessionGroup.GET("/:id/result/msgpack", handlers.Analysis.HandleGetResultMsgpack)
	sessionGroup.GET("/:id/events", handlers.Analysis.HandleEventStream)
	sessionGroup.GET("/:id/ws", handlers.WebSocket.HandleWebSocket)

	// Export
	sessionGroup.GET("/:id/export", handlers.Export.HandleDownloadReport)
	sessionGroup.POST("/:id/export", handlers.Export.HandleSaveReport)

	// Saved reports
	apiGroup.GET("/reports", handlers.Export.HandleListReports)
}

// SetupMiddleware configures the error handler and request validation
func SetupMiddleware(e *echo.Echo, log *zap.Logger, exposeDetails bool) {
	e.HTTPErrorHandler = NewErrorHandler(log, exposeDetails)
	e.Validator = NewRequestValidator()
}

// RequestValidator adapts validator/v10 to echo.Validator
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a struct-tag validator reporting JSON field names
func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate checks struct tags and reports the first failing field
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		apiErr := NewValidationError(verrs[0].Field())
		apiErr.Details = verrs[0].Error()
		return apiErr
	}
	return NewBadRequestError("invalid request", err)
}

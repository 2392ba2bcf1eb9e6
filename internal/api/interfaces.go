// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/hc1200093-glitch/L-eclaireur/internal/session"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles controller lifecycle and intake operations
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleStageFiles(c echo.Context) error
	HandleRemoveFile(c echo.Context) error
	HandleResetSession(c echo.Context) error
}

// AnalysisHandler handles submission and result operations
type AnalysisHandler interface {
	HandleStartAnalysis(c echo.Context) error
	HandleCancelAnalysis(c echo.Context) error
	HandleGetResult(c echo.Context) error
	HandleGetResultMsgpack(c echo.Context) error
	HandleEventStream(c echo.Context) error
}

// ExportHandler handles report download and save operations
type ExportHandler interface {
	HandleDownloadReport(c echo.Context) error
	HandleSaveReport(c echo.Context) error
	HandleListReports(c echo.Context) error
}

// SessionRegistry defines the interface for controller lookup.
// This allows mocking in tests
type SessionRegistry interface {
	Create() (*session.Controller, error)
	Get(id string) (*session.Controller, error)
	Delete(id string) error
	Count() int
	Busy() int
}

// BackendProbe checks that the analysis service answers.
type BackendProbe interface {
	Ping(ctx context.Context) error
}

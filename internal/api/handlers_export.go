// handlers_export.go - Report download and save handlers
package api

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/hc1200093-glitch/L-eclaireur/internal/export"
	"github.com/hc1200093-glitch/L-eclaireur/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Save targets accepted by HandleSaveReport.
const (
	TargetDirectory = "directory"
	TargetBucket    = "bucket"
)

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	registry SessionRegistry
	savers   map[string]export.Saver
	log      *zap.Logger
}

// NewExportHandler creates a new export handler. savers maps a target name
// to its destination; missing targets are refused.
func NewExportHandler(registry SessionRegistry, savers map[string]export.Saver, log *zap.Logger) ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandlerImpl{
		registry: registry,
		savers:   savers,
		log:      log.Named("api"),
	}
}

const defaultListLimit = 20

// reportLister is implemented by savers that remember what they stored.
type reportLister interface {
	List(limit int) ([]*storage.Entry, error)
}

type saveReportRequest struct {
	Format string `json:"format" validate:"required"`
	Target string `json:"target" validate:"required,oneof=directory bucket"`
}

// HandleDownloadReport encodes the result in ?format= and sends it as an attachment
func (h *ExportHandlerImpl) HandleDownloadReport(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	format := c.QueryParam("format")
	if format == "" {
		return NewValidationError("format")
	}

	report, err := ctl.Export(c.Request().Context(), format, nil)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": report.Filename}))
	return c.Blob(http.StatusOK, report.ContentType, report.Data)
}

// HandleSaveReport encodes the result and writes it to the chosen target
func (h *ExportHandlerImpl) HandleSaveReport(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	var req saveReportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	saver, ok := h.savers[req.Target]
	if !ok || saver == nil {
		return NewBadRequestError(fmt.Sprintf("export target not configured: %s", req.Target), nil)
	}

	report, err := ctl.Export(c.Request().Context(), req.Format, saver)
	if err != nil {
		return err
	}

	h.log.Info("report saved",
		zap.String("session", ctl.ID()),
		zap.String("target", req.Target),
		zap.String("filename", report.Filename),
	)
	return c.JSON(http.StatusCreated, report)
}

// HandleListReports returns the most recent reports saved to ?target=
func (h *ExportHandlerImpl) HandleListReports(c echo.Context) error {
	target := c.QueryParam("target")
	if target == "" {
		target = TargetDirectory
	}

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	saver, ok := h.savers[target]
	if !ok || saver == nil {
		return NewBadRequestError(fmt.Sprintf("export target not configured: %s", target), nil)
	}
	lister, ok := saver.(reportLister)
	if !ok {
		return NewBadRequestError(fmt.Sprintf("export target cannot list reports: %s", target), nil)
	}

	entries, err := lister.List(limit)
	if err != nil {
		return NewInternalError("failed to list reports", err)
	}
	return c.JSON(http.StatusOK, entries)
}

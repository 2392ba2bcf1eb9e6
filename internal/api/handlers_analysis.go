// handlers_analysis.go - Submission, result and progress stream handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/hc1200093-glitch/L-eclaireur/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// sseKeepAlive is how often an idle event stream sends a comment line.
const sseKeepAlive = 15 * time.Second

// AnalysisHandlerImpl implements the AnalysisHandler interface
type AnalysisHandlerImpl struct {
	registry SessionRegistry
}

// NewAnalysisHandler creates a new analysis handler instance
func NewAnalysisHandler(registry SessionRegistry) AnalysisHandler {
	return &AnalysisHandlerImpl{registry: registry}
}

type analyzeRequest struct {
	ConsentAILearning bool `json:"consent_ai_learning"`
}

// HandleStartAnalysis submits the staged set. 409 while another runs.
func (h *AnalysisHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	snap, err := ctl.Start(req.ConsentAILearning)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, snap)
}

// HandleCancelAnalysis aborts the in-flight submission, keeping staged files
func (h *AnalysisHandlerImpl) HandleCancelAnalysis(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	cancelled := ctl.Cancel()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
		"session":   ctl.Snapshot(),
	})
}

// HandleGetResult returns the stored analysis result
func (h *AnalysisHandlerImpl) HandleGetResult(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleGetResultMsgpack returns the stored result in MessagePack format
func (h *AnalysisHandlerImpl) HandleGetResultMsgpack(c echo.Context) error {
	result, err := h.result(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(result)
	if err != nil {
		return NewInternalError("failed to encode result", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *AnalysisHandlerImpl) result(c echo.Context) (*models.AnalysisResult, error) {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return nil, err
	}
	snap := ctl.Snapshot()
	if snap.Result == nil {
		return nil, session.ErrNoResult
	}
	return snap.Result, nil
}

// HandleEventStream streams snapshots via SSE until the submission settles.
// When nothing is in flight the current snapshot is sent once.
func (h *AnalysisHandlerImpl) HandleEventStream(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	snap := ctl.Snapshot()
	sendSSEData(c, snap)
	if snap.Status != models.SessionStatusSubmitting {
		return nil
	}
	last := snap.Version

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case next, ok := <-updates:
			if !ok {
				sendSSEError(c, "session closed")
				return nil
			}
			if next.Version <= last {
				continue
			}
			last = next.Version
			sendSSEData(c, next)
			if next.Status != models.SessionStatusSubmitting {
				return nil
			}

		case <-keepAlive.C:
			fmt.Fprint(c.Response(), ": keep-alive\n\n")
			c.Response().Flush()

		case <-ctx.Done():
			return nil
		}
	}
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

// handlers_session.go - Controller lifecycle and intake handlers
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/hc1200093-glitch/L-eclaireur/internal/session"
	"github.com/labstack/echo/v4"
)

// filesField is the repeated multipart field carrying documents.
const filesField = "files"

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	registry SessionRegistry
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(registry SessionRegistry) SessionHandler {
	return &SessionHandlerImpl{registry: registry}
}

// HandleCreateSession registers a fresh controller
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	ctl, err := h.registry.Create()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ctl.Snapshot())
}

// HandleGetSession returns the current snapshot and keeps the session alive
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

// HandleDeleteSession resets and forgets the controller
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if err := h.registry.Delete(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleStageFiles accepts multipart documents under the "files" field
func (h *SessionHandlerImpl) HandleStageFiles(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	candidates, err := readCandidates(c.Request())
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return NewValidationError(filesField)
	}

	report, err := ctl.Stage(candidates)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"accepted": report.Accepted,
		"rejected": report.Rejected,
		"message":  report.Message(),
		"session":  ctl.Snapshot(),
	})
}

// HandleRemoveFile drops the staged file at :index. A bad index is a no-op.
func (h *SessionHandlerImpl) HandleRemoveFile(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}

	removed, err := ctl.Remove(index)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"removed": removed,
		"session": ctl.Snapshot(),
	})
}

// HandleResetSession cancels any submission and empties the staged set
func (h *SessionHandlerImpl) HandleResetSession(c echo.Context) error {
	ctl, err := lookup(c, h.registry)
	if err != nil {
		return err
	}
	ctl.Reset()
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

// lookup resolves the :id path parameter to a controller
func lookup(c echo.Context, registry SessionRegistry) (*session.Controller, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	return registry.Get(id)
}

// readCandidates streams the "files" parts into memory. Parts are never
// spilled to temporary files.
func readCandidates(r *http.Request) ([]models.Candidate, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, NewBadRequestError("invalid multipart form", err)
	}

	var candidates []models.Candidate
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return candidates, nil
		}
		if err != nil {
			return nil, NewBadRequestError("invalid multipart form", err)
		}

		if part.FormName() != filesField || part.FileName() == "" {
			part.Close()
			continue
		}

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, NewBadRequestError(fmt.Sprintf("failed to read %s", part.FileName()), err)
		}
		candidates = append(candidates, models.Candidate{
			Name:    part.FileName(),
			Size:    int64(len(content)),
			Content: content,
		})
	}
}

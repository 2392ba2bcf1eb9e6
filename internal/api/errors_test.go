package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/hc1200093-glitch/L-eclaireur/internal/session"
	"github.com/hc1200093-glitch/L-eclaireur/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error passes through", NewConflictError("CONFLICT", "x"), http.StatusConflict, "CONFLICT"},
		{"wrapped not found", fmt.Errorf("lookup: %w", session.ErrSessionNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"validation", &models.ValidationError{Reason: models.ReasonUnknownExportFormat, Subject: "odt"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("export: %w", &models.ValidationError{Reason: models.ReasonFileTooLarge}), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty submission", &models.SubmissionError{Kind: models.KindValidation, Detail: "aucun fichier"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"not found", session.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"busy", session.ErrBusy, http.StatusConflict, "ANALYSIS_IN_PROGRESS"},
		{"no result", session.ErrNoResult, http.StatusConflict, "NO_RESULT"},
		{"nothing staged", session.ErrNothingStaged, http.StatusBadRequest, "NOTHING_STAGED"},
		{"registry full", session.ErrTooManySessions, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"bad report name", fmt.Errorf("save: %w", storage.ErrInvalidName), http.StatusBadRequest, "BAD_REQUEST"},
		{"server submission error", &models.SubmissionError{Kind: models.KindServer, Detail: "boom"}, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		exposeDetails bool
		wantStatus    int
		wantDetails   string
	}{
		{"internal details hidden", errors.New("secret path /var/x"), false, http.StatusInternalServerError, ""},
		{"internal details exposed", errors.New("secret path /var/x"), true, http.StatusInternalServerError, "secret path /var/x"},
		{"echo http error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), false, http.StatusMethodNotAllowed, ""},
		{"client error keeps details", &models.ValidationError{Reason: models.ReasonUnsupportedFormat}, false, http.StatusBadRequest, "unsupported_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			NewErrorHandler(nil, tt.exposeDetails)(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantDetails, body.Details)
		})
	}
}

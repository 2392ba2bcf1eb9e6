package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
)

// singleResponse is the body of POST /analyze.
type singleResponse struct {
	Success              bool   `json:"success"`
	Filename             string `json:"filename"`
	FileSize             int64  `json:"file_size"`
	Analysis             string `json:"analysis"`
	Message              string `json:"message"`
	SegmentsAnalyzed     int    `json:"segments_analyzed"`
	DestructionConfirmed bool   `json:"destruction_confirmed"`
}

// multipleResponse is the body of POST /analyze-multiple.
type multipleResponse struct {
	Success              bool     `json:"success"`
	TotalFiles           int      `json:"total_files"`
	CombinedAnalysis     string   `json:"combined_analysis"`
	Message              string   `json:"message"`
	FilesAnalyzed        []string `json:"files_analyzed"`
	DestructionConfirmed bool     `json:"destruction_confirmed"`
}

// anonymized_for_ai is not decoded from either shape.

func (r *singleResponse) normalize() *models.AnalysisResult {
	result := &models.AnalysisResult{
		Text:                 r.Analysis,
		Endpoint:             models.EndpointSingle,
		SegmentsAnalyzed:     r.SegmentsAnalyzed,
		Message:              r.Message,
		DestructionConfirmed: r.DestructionConfirmed,
	}
	if r.Filename != "" {
		result.Documents = []string{r.Filename}
	}
	return result
}

func (r *multipleResponse) normalize() *models.AnalysisResult {
	docs := make([]string, len(r.FilesAnalyzed))
	copy(docs, r.FilesAnalyzed)
	return &models.AnalysisResult{
		Text:                 r.CombinedAnalysis,
		Endpoint:             models.EndpointMultiple,
		Documents:            docs,
		Message:              r.Message,
		DestructionConfirmed: r.DestructionConfirmed,
	}
}

// decodeResult folds the endpoint-specific body into the canonical result.
// The endpoint, not the presence of a field, selects the shape.
func decodeResult(endpoint models.Endpoint, body []byte) (*models.AnalysisResult, error) {
	switch endpoint {
	case models.EndpointSingle:
		var r singleResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decoding analysis response: %w", err)
		}
		return r.normalize(), nil
	case models.EndpointMultiple:
		var r multipleResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decoding combined analysis response: %w", err)
		}
		return r.normalize(), nil
	default:
		return nil, fmt.Errorf("unknown endpoint %q", endpoint)
	}
}

// remoteError is a non-2xx reply from the analysis service.
type remoteError struct {
	Status int
	Detail string
	// HasDetail is true when the body carried a non-null "detail" field.
	HasDetail bool
}

func (e *remoteError) Error() string {
	if e.HasDetail {
		return fmt.Sprintf("analysis service returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("analysis service returned %d", e.Status)
}

// parseRemoteError extracts the "detail" field of an error body. A string
// detail is unquoted; any other JSON value is passed through as raw text.
func parseRemoteError(status int, body []byte) *remoteError {
	rerr := &remoteError{Status: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 || string(envelope.Detail) == "null" {
		return rerr
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		rerr.Detail = text
	} else {
		rerr.Detail = string(envelope.Detail)
	}
	rerr.HasDetail = rerr.Detail != ""
	return rerr
}

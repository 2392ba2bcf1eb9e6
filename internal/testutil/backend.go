// backend.go - Fake analysis service for testing
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// BackendRequest is one request recorded by FakeBackend.
type BackendRequest struct {
	Path    string
	Consent string
	Field   string
	Files   []string
}

// FakeBackend mimics the analysis service's /health, /analyze and
// /analyze-multiple routes.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []BackendRequest
	text     string
	status   int
	detail   string
	hold     chan struct{}
}

// NewFakeBackend starts a backend answering every analysis with text.
func NewFakeBackend(t testing.TB, text string) *FakeBackend {
	t.Helper()

	b := &FakeBackend{text: text, status: http.StatusOK}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	// Runs before Server.Close so held handlers can return.
	t.Cleanup(b.Release)
	return b
}

// BaseURL is the analysis base URL, including the /api prefix.
func (b *FakeBackend) BaseURL() string {
	return b.Server.URL + "/api"
}

// RespondError makes analyses fail with status and a "detail" body. An
// empty detail sends a body without one.
func (b *FakeBackend) RespondError(status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.detail = detail
}

// Hold blocks analysis replies until Release or until the client gives up.
func (b *FakeBackend) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold == nil {
		b.hold = make(chan struct{})
	}
}

// Release lets held replies through.
func (b *FakeBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold != nil {
		close(b.hold)
		b.hold = nil
	}
}

// Requests returns the recorded analysis requests.
func (b *FakeBackend) Requests() []BackendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BackendRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

func (b *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fake"})
		return
	case "/api/analyze", "/api/analyze-multiple":
	default:
		http.NotFound(w, r)
		return
	}

	req := BackendRequest{Path: r.URL.Path, Consent: r.URL.Query().Get("consent_ai_learning")}
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		for field, headers := range r.MultipartForm.File {
			req.Field = field
			for _, h := range headers {
				req.Files = append(req.Files, h.Filename)
			}
		}
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	hold, text, status, detail := b.hold, b.text, b.status, b.detail
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	if status != http.StatusOK {
		body := map[string]interface{}{}
		if detail != "" {
			body["detail"] = detail
		}
		writeJSON(w, status, body)
		return
	}

	if r.URL.Path == "/api/analyze" {
		name := ""
		if len(req.Files) > 0 {
			name = req.Files[0]
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":               true,
			"filename":              name,
			"analysis":              text,
			"anonymized_for_ai":     req.Consent == "true",
			"segments_analyzed":     1,
			"destruction_confirmed": true,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":               true,
		"total_files":           len(req.Files),
		"combined_analysis":     text,
		"files_analyzed":        req.Files,
		"destruction_confirmed": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

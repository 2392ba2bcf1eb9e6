package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	path    string
	consent string
	field   string
	names   []string
	bodies  []string
	types   []string
}

func staged(name, content string) models.StagedFile {
	return models.StagedFile{ID: name, Name: name, Size: int64(len(content)), Content: []byte(content)}
}

// fakeBackend records the last request and answers with reply.
func fakeBackend(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.consent = r.URL.Query().Get("consent_ai_learning")

		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseMultipartForm(32<<20))
			for field, headers := range r.MultipartForm.File {
				rec.field = field
				for _, h := range headers {
					f, err := h.Open()
					require.NoError(t, err)
					data, _ := io.ReadAll(f)
					_ = f.Close()
					rec.names = append(rec.names, h.Filename)
					rec.bodies = append(rec.bodies, string(data))
					rec.types = append(rec.types, h.Header.Get("Content-Type"))
				}
			}
		}
		reply(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wait(t *testing.T, sub *Submission) (*models.AnalysisResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sub.Wait(ctx)
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/api")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8000/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/analyze", c.endpointURL("analyze").String())
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, models.EndpointSingle, EndpointFor(1))
	assert.Equal(t, models.EndpointMultiple, EndpointFor(2))
	assert.Equal(t, models.EndpointMultiple, EndpointFor(10))
}

func TestClient_SubmitSingle(t *testing.T) {
	srv, rec := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":               true,
			"filename":              "rapport.pdf",
			"file_size":             12,
			"analysis":              "Analyse du rapport",
			"anonymized_for_ai":     true,
			"message":               "ok",
			"segments_analyzed":     3,
			"destruction_confirmed": true,
		})
	})

	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	sub, err := c.Submit(context.Background(), []models.StagedFile{staged("rapport.pdf", "pdf bytes")}, true)
	require.NoError(t, err)
	assert.Equal(t, models.EndpointSingle, sub.Endpoint)

	result, err := wait(t, sub)
	require.NoError(t, err)

	assert.Equal(t, "/api/analyze", rec.path)
	assert.Equal(t, "true", rec.consent)
	assert.Equal(t, "file", rec.field)
	assert.Equal(t, []string{"rapport.pdf"}, rec.names)
	assert.Equal(t, []string{"pdf bytes"}, rec.bodies)
	assert.Equal(t, []string{"application/pdf"}, rec.types)

	assert.Equal(t, "Analyse du rapport", result.Text)
	assert.Equal(t, []string{"rapport.pdf"}, result.Documents)
	assert.Equal(t, 3, result.SegmentsAnalyzed)
	assert.True(t, result.DestructionConfirmed)
	assert.False(t, sub.Pending())
}

func TestClient_SubmitMultiple(t *testing.T) {
	srv, rec := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":           true,
			"total_files":       2,
			"combined_analysis": "Synthèse",
			"files_analyzed":    []string{"a.pdf", "b.png"},
		})
	})

	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	files := []models.StagedFile{staged("a.pdf", "A"), staged("b.png", "B")}
	sub, err := c.Submit(context.Background(), files, false)
	require.NoError(t, err)

	result, err := wait(t, sub)
	require.NoError(t, err)

	assert.Equal(t, "/api/analyze-multiple", rec.path)
	assert.Equal(t, "false", rec.consent)
	assert.Equal(t, "files", rec.field)
	assert.Equal(t, []string{"a.pdf", "b.png"}, rec.names)
	assert.Equal(t, []string{"A", "B"}, rec.bodies)

	assert.Equal(t, "Synthèse", result.Text)
	assert.Equal(t, models.EndpointMultiple, result.Endpoint)
	assert.Equal(t, []string{"a.pdf", "b.png"}, result.Documents)
}

func TestClient_SubmitNothing(t *testing.T) {
	c, err := NewClient("http://localhost:8000/api")
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), nil, false)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   models.ErrorKind
		wantDetail string
	}{
		{"string detail", http.StatusUnprocessableEntity, `{"detail":"Fichier illisible"}`, models.KindServer, "Fichier illisible"},
		{"structured detail", http.StatusBadRequest, `{"detail":[{"loc":["file"]}]}`, models.KindServer, `[{"loc":["file"]}]`},
		{"null detail", http.StatusInternalServerError, `{"detail":null}`, models.KindUnknown, ""},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, models.KindUnknown, ""},
		{"undecodable success", http.StatusOK, `not json`, models.KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c, err := NewClient(srv.URL)
			require.NoError(t, err)

			sub, err := c.Submit(context.Background(), []models.StagedFile{staged("a.pdf", "x")}, false)
			require.NoError(t, err)

			_, err = wait(t, sub)
			var subErr *models.SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.Equal(t, tt.wantKind, subErr.Kind)
			assert.Equal(t, tt.wantDetail, subErr.Detail)
		})
	}
}

func TestClient_ServerDetailDisplayedVerbatim(t *testing.T) {
	srv, _ := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Quota dépassé"})
	})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	sub, err := c.Submit(context.Background(), []models.StagedFile{staged("a.pdf", "x")}, false)
	require.NoError(t, err)
	_, err = wait(t, sub)

	var subErr *models.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "Erreur lors de l'analyse: Quota dépassé", subErr.DisplayMessage())
}

func blockingBackend(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv, _ := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		writeJSON(w, http.StatusOK, map[string]string{"analysis": "trop tard"})
	})
	// Runs before srv.Close.
	t.Cleanup(func() { close(release) })
	return srv
}

func TestClient_Timeout(t *testing.T) {
	srv := blockingBackend(t)
	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	sub, err := c.Submit(context.Background(), []models.StagedFile{staged("a.pdf", "x")}, false)
	require.NoError(t, err)

	_, err = wait(t, sub)
	assert.True(t, models.IsTimeout(err))

	var subErr *models.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "L'analyse a pris trop de temps. Veuillez réessayer.", subErr.DisplayMessage())
}

func TestClient_Cancel(t *testing.T) {
	srv := blockingBackend(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	sub, err := c.Submit(context.Background(), []models.StagedFile{staged("a.pdf", "x"), staged("b.pdf", "y")}, false)
	require.NoError(t, err)
	assert.True(t, sub.Pending())

	assert.True(t, sub.Cancel())
	assert.False(t, sub.Cancel(), "second cancel must be a no-op")

	_, err = wait(t, sub)
	assert.True(t, models.IsCancelled(err))

	// The transport outcome arriving afterwards never replaces the cancellation.
	assert.Eventually(t, func() bool { return c.InFlight() == 0 }, 5*time.Second, 10*time.Millisecond)
	result, subErr := sub.Outcome()
	assert.Nil(t, result)
	require.NotNil(t, subErr)
	assert.Equal(t, models.KindCancelled, subErr.Kind)
}

func TestClient_CancelAfterSettleIsNoop(t *testing.T) {
	srv, _ := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"analysis": "fini"})
	})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	sub, err := c.Submit(context.Background(), []models.StagedFile{staged("a.pdf", "x")}, false)
	require.NoError(t, err)
	result, err := wait(t, sub)
	require.NoError(t, err)

	assert.False(t, sub.Cancel())
	after, subErr := sub.Outcome()
	assert.Nil(t, subErr)
	assert.Equal(t, result, after)
}

func TestClient_ParentContextCancel(t *testing.T) {
	srv := blockingBackend(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	parent, cancel := context.WithCancel(context.Background())
	sub, err := c.Submit(parent, []models.StagedFile{staged("a.pdf", "x")}, false)
	require.NoError(t, err)

	cancel()

	_, err = wait(t, sub)
	assert.True(t, models.IsCancelled(err))
}

func TestClient_Ping(t *testing.T) {
	srv, rec := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "/api/health", rec.path)

	down, err := NewClient(srv.URL + "/elsewhere")
	require.NoError(t, err)
	assert.Error(t, down.Ping(context.Background()))
}

func TestBuildMultipart_EscapesQuotes(t *testing.T) {
	body, ct, err := buildMultipart(models.EndpointSingle, []models.StagedFile{staged(`my "best".pdf`, "x")})
	require.NoError(t, err)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, ct, "multipart/form-data")
	assert.Contains(t, string(data), `filename="my \"best\".pdf"`)
}

// Package analysis submits staged documents to the remote analysis service.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/hc1200093-glitch/L-eclaireur/internal/upload"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one submission. Multi-document analyses on the
	// backend routinely take many minutes.
	DefaultTimeout = 30 * time.Minute

	defaultHealthTimeout = 5 * time.Second
)

// Client talks to the analysis service.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	timeout       time.Duration
	healthTimeout time.Duration
	log           *zap.Logger
	inFlight      atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its own Timeout should be
// zero; the submission budget is applied per request through the context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-submission budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHealthTimeout sets the budget of Ping.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log.Named("analysis") }
}

// NewClient creates a client for the service rooted at baseURL
// (e.g. "http://localhost:8000/api").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing analysis base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("analysis base url must be absolute: %q", baseURL)
	}

	c := &Client{
		baseURL:       u,
		http:          &http.Client{},
		timeout:       DefaultTimeout,
		healthTimeout: defaultHealthTimeout,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EndpointFor selects the request shape from the file count alone.
func EndpointFor(count int) models.Endpoint {
	if count == 1 {
		return models.EndpointSingle
	}
	return models.EndpointMultiple
}

// Submit starts an analysis of files and returns immediately. The returned
// Submission settles exactly once. The caller must not start another
// submission for the same staged set while this one is pending.
func (c *Client) Submit(parent context.Context, files []models.StagedFile, consent bool) (*Submission, error) {
	if len(files) == 0 {
		return nil, &models.SubmissionError{Kind: models.KindValidation, Detail: "aucun fichier à analyser"}
	}

	endpoint := EndpointFor(len(files))
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	sub := newSubmission(uuid.New().String(), endpoint, len(files), cancel)

	c.log.Info("submission started",
		zap.String("submission", sub.ID),
		zap.String("endpoint", string(endpoint)),
		zap.Int("files", len(files)),
		zap.Bool("consent_ai_learning", consent),
	)

	c.inFlight.Add(1)
	go c.run(ctx, sub, files, consent)

	return sub, nil
}

func (c *Client) run(ctx context.Context, sub *Submission, files []models.StagedFile, consent bool) {
	defer c.inFlight.Add(-1)
	defer sub.cancel()

	result, err := c.post(ctx, sub.Endpoint, files, consent)

	var subErr *models.SubmissionError
	if err != nil {
		subErr = classify(ctx, err)
	}
	if !sub.settle(result, subErr) {
		// Cancelled first; the late outcome is dropped.
		return
	}

	fields := []zap.Field{
		zap.String("submission", sub.ID),
		zap.Duration("elapsed", time.Since(sub.StartedAt)),
	}
	if subErr != nil {
		c.log.Warn("submission failed", append(fields, zap.String("kind", string(subErr.Kind)), zap.Error(err))...)
		return
	}
	c.log.Info("submission completed", append(fields, zap.Int("documents", len(result.Documents)))...)
}

func (c *Client) post(ctx context.Context, endpoint models.Endpoint, files []models.StagedFile, consent bool) (*models.AnalysisResult, error) {
	body, contentType, err := buildMultipart(endpoint, files)
	if err != nil {
		return nil, err
	}

	target := c.endpointURL(string(endpoint))
	q := url.Values{}
	q.Set("consent_ai_learning", strconv.FormatBool(consent))
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling analysis service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseRemoteError(resp.StatusCode, respBody)
	}

	return decodeResult(endpoint, respBody)
}

// Ping checks that the analysis service answers its health route.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL("health").String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling analysis service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analysis service health returned %d", resp.StatusCode)
	}
	return nil
}

// InFlight returns the number of outstanding submissions across all callers.
func (c *Client) InFlight() int64 {
	return c.inFlight.Load()
}

func (c *Client) endpointURL(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	return &u
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipart writes one "file" part for the single endpoint, or one
// "files" part per document, in order, for the multiple endpoint.
func buildMultipart(endpoint models.Endpoint, files []models.StagedFile) (io.Reader, string, error) {
	field := "files"
	if endpoint == models.EndpointSingle {
		field = "file"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			field, quoteEscaper.Replace(f.Name)))
		h.Set("Content-Type", upload.ContentType(f.Name))

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating part for %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("writing part for %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// classify maps a transport or service failure onto a submission error.
// Order: cancellation, timeout, remote detail, anything else.
func classify(ctx context.Context, err error) *models.SubmissionError {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return &models.SubmissionError{Kind: models.KindCancelled, Err: err}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &models.SubmissionError{Kind: models.KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &models.SubmissionError{Kind: models.KindTimeout, Err: err}
	}

	var rerr *remoteError
	if errors.As(err, &rerr) && rerr.HasDetail {
		return &models.SubmissionError{Kind: models.KindServer, Detail: rerr.Detail, Err: err}
	}

	return &models.SubmissionError{Kind: models.KindUnknown, Err: err}
}

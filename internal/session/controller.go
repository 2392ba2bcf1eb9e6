package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/analysis"
	"github.com/hc1200093-glitch/L-eclaireur/internal/export"
	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/hc1200093-glitch/L-eclaireur/internal/upload"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("an analysis is already in progress")
	// ErrNothingStaged is returned when starting with an empty file set.
	ErrNothingStaged = errors.New("no document staged")
	// ErrNoResult is returned when exporting without a successful analysis.
	ErrNoResult = errors.New("no analysis result available")
)

// Submitter starts remote analyses.
type Submitter interface {
	Submit(ctx context.Context, files []models.StagedFile, consent bool) (*analysis.Submission, error)
}

// Exporter renders and saves reports.
type Exporter interface {
	Render(ctx context.Context, job models.ExportJob) (*models.Report, error)
	Export(ctx context.Context, job models.ExportJob, saver export.Saver) (*models.Report, error)
}

// Clock lets tests pin the report generation date.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Deps are shared by every controller of a Manager.
type Deps struct {
	Submitter     Submitter
	Exporter      Exporter
	UploadOptions []upload.Option
	Clock         Clock
	Logger        *zap.Logger
}

// Controller owns one intake, submit, result lifecycle.
type Controller struct {
	id        string
	uploads   *upload.Manager
	submitter Submitter
	exporter  Exporter
	clock     Clock
	log       *zap.Logger

	mu       sync.Mutex
	state    state
	version  uint64
	closed   bool
	watchers map[int]chan *models.SessionSnapshot
	nextID   int
}

// NewController creates a controller in the Empty state.
func NewController(id string, deps Deps) *Controller {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	exp := deps.Exporter
	if exp == nil {
		exp = export.NewExporter()
	}

	return &Controller{
		id:        id,
		uploads:   upload.NewManager(append(deps.UploadOptions, upload.WithLogger(log))...),
		submitter: deps.Submitter,
		exporter:  exp,
		clock:     clock,
		log:       log.Named("session").With(zap.String("session", id)),
		state:     stateEmpty{},
		watchers:  make(map[int]chan *models.SessionSnapshot),
	}
}

// ID returns the controller id.
func (c *Controller) ID() string {
	return c.id
}

// Stage validates candidates and appends the accepted ones. Any accepted
// file clears a stored result or error.
func (c *Controller) Stage(candidates []models.Candidate) (*upload.AcceptReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.state.(stateSubmitting); busy {
		return nil, ErrBusy
	}

	report := c.uploads.Accept(candidates)
	if len(report.Accepted) > 0 {
		c.transition(stateStaged{})
	}
	return report, nil
}

// Remove drops the staged file at index. An out-of-range index is a no-op.
func (c *Controller) Remove(index int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.state.(stateSubmitting); busy {
		return false, ErrBusy
	}

	if !c.uploads.Remove(index) {
		return false, nil
	}
	c.transition(idleState(c.uploads.Len()))
	return true, nil
}

// Reset cancels any in-flight submission and empties the staged set.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.state.(stateSubmitting); ok {
		s.sub.Cancel()
	}
	c.uploads.Reset()
	c.transition(stateEmpty{})
}

// Start submits the staged set. The busy check and the move to Submitting
// happen under one lock, so two callers can never both start.
func (c *Controller) Start(consent bool) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.state.(stateSubmitting); busy {
		return nil, ErrBusy
	}

	files := c.uploads.Files()
	if len(files) == 0 {
		return nil, ErrNothingStaged
	}

	sub, err := c.submitter.Submit(context.Background(), files, consent)
	if err != nil {
		return nil, err
	}

	documents := make([]string, len(files))
	for i, f := range files {
		documents[i] = f.Name
	}
	c.transition(stateSubmitting{sub: sub, documents: documents})

	go c.await(sub, documents)

	return c.snapshotLocked(), nil
}

// await applies the outcome of sub if it is still the current submission.
func (c *Controller) await(sub *analysis.Submission, documents []string) {
	<-sub.Done()

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.state.(stateSubmitting)
	if !ok || current.sub.ID != sub.ID {
		return
	}

	result, subErr := sub.Outcome()
	if subErr != nil {
		c.transition(stateFailed{err: subErr})
		return
	}
	c.transition(stateResult{result: result, documents: documents})
}

// Cancel aborts the in-flight submission. The staged set is kept so the
// same documents can be resubmitted. Returns false when nothing was pending.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.state.(stateSubmitting)
	if !ok {
		return false
	}
	if !s.sub.Cancel() {
		// The transport settled first; await applies its outcome.
		return false
	}
	_, subErr := s.sub.Outcome()
	c.transition(stateFailed{err: subErr})
	return true
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.state.(stateSubmitting)
	return busy
}

// Export encodes the stored result in format. A nil saver only renders.
func (c *Controller) Export(ctx context.Context, format string, saver export.Saver) (*models.Report, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	s, ok := c.state.(stateResult)
	c.mu.Unlock()
	if !ok {
		return nil, ErrNoResult
	}

	job := export.NewJob(s.result, f, s.documents, c.clock.Now())
	if saver == nil {
		return c.exporter.Render(ctx, job)
	}
	return c.exporter.Export(ctx, job, saver)
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() *models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *models.SessionSnapshot {
	snap := models.NewSessionSnapshot(c.id)
	snap.Status = c.state.status()
	snap.Files = c.uploads.Files()
	snap.Version = c.version

	switch s := c.state.(type) {
	case stateSubmitting:
		snap.SubmissionID = s.sub.ID
	case stateResult:
		snap.Result = s.result
	case stateFailed:
		snap.Error = s.err
		snap.ErrorMessage = s.err.DisplayMessage()
	}
	return snap
}

// Subscribe returns a channel receiving the latest snapshot after every
// state change. Slow readers only see the most recent one. The channel is
// closed by the returned cancel func or when the controller closes.
func (c *Controller) Subscribe() (<-chan *models.SessionSnapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan *models.SessionSnapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextID
	c.nextID++
	c.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if w, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(w)
			}
		})
	}
}

// Close resets the controller and releases every subscriber.
func (c *Controller) Close() {
	c.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
}

// transition must be called with the lock held.
func (c *Controller) transition(next state) {
	prev := c.state.status()
	c.state = next
	c.version++

	if prev != next.status() {
		fields := []zap.Field{
			zap.String("from", string(prev)),
			zap.String("to", string(next.status())),
			zap.Int("files", c.uploads.Len()),
		}
		if f, ok := next.(stateFailed); ok {
			fields = append(fields, zap.String("kind", string(f.err.Kind)))
		}
		c.log.Debug("state changed", fields...)
	}

	snap := c.snapshotLocked()
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

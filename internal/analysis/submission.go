package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
)

// Submission is one in-flight analysis request. Its outcome is assigned
// exactly once: by the transport when the request resolves, or by Cancel.
// Whichever comes first wins; later attempts are dropped.
type Submission struct {
	ID        string
	Endpoint  models.Endpoint
	Files     int
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	settled bool
	result  *models.AnalysisResult
	err     *models.SubmissionError
}

func newSubmission(id string, endpoint models.Endpoint, files int, cancel context.CancelFunc) *Submission {
	return &Submission{
		ID:        id,
		Endpoint:  endpoint,
		Files:     files,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// settle records the outcome if none is recorded yet.
func (s *Submission) settle(result *models.AnalysisResult, err *models.SubmissionError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settled {
		return false
	}
	s.settled = true
	if err != nil {
		s.err = err
	} else {
		s.result = result
	}
	close(s.done)
	return true
}

// Cancel aborts the request. It is idempotent and returns true only when it
// decided the outcome.
func (s *Submission) Cancel() bool {
	won := s.settle(nil, &models.SubmissionError{Kind: models.KindCancelled, Err: context.Canceled})
	s.cancel()
	return won
}

// Done is closed once the outcome is known.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Pending reports whether the submission is still outstanding.
func (s *Submission) Pending() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Outcome returns the settled result or error. Both are nil while pending.
func (s *Submission) Outcome() (*models.AnalysisResult, *models.SubmissionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Wait blocks until the submission settles or ctx is done. Giving up on
// ctx does not cancel the submission.
func (s *Submission) Wait(ctx context.Context) (*models.AnalysisResult, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, subErr := s.Outcome()
	if subErr != nil {
		return nil, subErr
	}
	return result, nil
}

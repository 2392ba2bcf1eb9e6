package session

import (
	"github.com/hc1200093-glitch/L-eclaireur/internal/analysis"
	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
)

// state is the controller lifecycle. Exactly one variant is current, so a
// result and an error can never coexist and only stateSubmitting carries a
// cancellation handle.
type state interface {
	status() models.SessionStatus
}

type stateEmpty struct{}

type stateStaged struct{}

type stateSubmitting struct {
	sub       *analysis.Submission
	documents []string
}

type stateResult struct {
	result    *models.AnalysisResult
	documents []string
}

type stateFailed struct {
	err *models.SubmissionError
}

func (stateEmpty) status() models.SessionStatus      { return models.SessionStatusEmpty }
func (stateStaged) status() models.SessionStatus     { return models.SessionStatusStaged }
func (stateSubmitting) status() models.SessionStatus { return models.SessionStatusSubmitting }
func (stateResult) status() models.SessionStatus     { return models.SessionStatusResult }
func (stateFailed) status() models.SessionStatus     { return models.SessionStatusFailed }

// idleState is Staged when files remain, Empty otherwise.
func idleState(staged int) state {
	if staged > 0 {
		return stateStaged{}
	}
	return stateEmpty{}
}

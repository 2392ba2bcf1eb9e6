package models

// SessionStatus is the lifecycle state of an analysis controller.
type SessionStatus string

const (
	SessionStatusEmpty      SessionStatus = "empty"
	SessionStatusStaged     SessionStatus = "staged"
	SessionStatusSubmitting SessionStatus = "submitting"
	SessionStatusResult     SessionStatus = "result"
	SessionStatusFailed     SessionStatus = "failed"
)

// Settled reports whether the status is terminal for a submission.
func (s SessionStatus) Settled() bool {
	return s == SessionStatusResult || s == SessionStatusFailed
}

// SessionSnapshot is a read-only view of a controller, handed to the
// presentation layer. Result and Error are never both set.
type SessionSnapshot struct {
	ID           string           `json:"id"`
	Status       SessionStatus    `json:"status"`
	Files        []StagedFile     `json:"files"`
	SubmissionID string           `json:"submissionId,omitempty"`
	Result       *AnalysisResult  `json:"result,omitempty"`
	Error        *SubmissionError `json:"error,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Version      uint64           `json:"version"`
}

// NewSessionSnapshot creates an empty snapshot for a fresh controller.
func NewSessionSnapshot(id string) *SessionSnapshot {
	return &SessionSnapshot{
		ID:     id,
		Status: SessionStatusEmpty,
		Files:  make([]StagedFile, 0),
	}
}

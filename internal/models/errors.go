package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure surfaced to the presentation layer.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindCancelled  ErrorKind = "cancelled"
	KindTimeout    ErrorKind = "timeout"
	KindServer     ErrorKind = "server"
	KindUnknown    ErrorKind = "unknown"
)

// ValidationReason identifies which local check refused an input.
type ValidationReason string

const (
	ReasonUnsupportedFormat   ValidationReason = "unsupported_format"
	ReasonUnknownExportFormat ValidationReason = "unknown_export_format"
	ReasonFileTooLarge        ValidationReason = "file_too_large"
	ReasonFileLimitReached    ValidationReason = "file_limit_reached"
)

// ValidationError is raised by intake and export checks. It is always
// recoverable: the offending input is reported and the rest proceeds.
type ValidationError struct {
	Reason  ValidationReason
	Subject string
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Reason, e.Subject)
}

// SubmissionError is the terminal failure of one submission.
type SubmissionError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
	Err    error     `json:"-"`
}

func (e *SubmissionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("submission %s: %s", e.Kind, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("submission %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("submission %s", e.Kind)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// DisplayMessage returns the user-facing message for the error kind.
func (e *SubmissionError) DisplayMessage() string {
	switch e.Kind {
	case KindCancelled:
		return "Analyse annulée."
	case KindTimeout:
		return "L'analyse a pris trop de temps. Veuillez réessayer."
	case KindServer:
		return "Erreur lors de l'analyse: " + e.Detail
	case KindValidation:
		return e.Detail
	default:
		return "Une erreur est survenue. Veuillez réessayer."
	}
}

// KindOf reports the kind of a submission error, or KindValidation for a
// ValidationError. Anything else is KindUnknown.
func KindOf(err error) ErrorKind {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Kind
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}
	return KindUnknown
}

// IsCancelled reports whether err is a cancelled submission.
func IsCancelled(err error) bool {
	return err != nil && KindOf(err) == KindCancelled
}

// IsTimeout reports whether err is a timed out submission.
func IsTimeout(err error) bool {
	return err != nil && KindOf(err) == KindTimeout
}

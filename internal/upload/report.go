package upload

import (
	"strings"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
)

// AcceptReport is the outcome of one Accept call.
type AcceptReport struct {
	Accepted []models.StagedFile `json:"accepted"`
	Rejected []models.Rejection  `json:"rejected"`
}

var reasonLabels = []struct {
	reason models.ValidationReason
	label  string
}{
	{models.ReasonUnsupportedFormat, "Format non supporté"},
	{models.ReasonFileTooLarge, "Fichier trop volumineux (max 100 Mo)"},
	{models.ReasonFileLimitReached, "Maximum 10 fichiers"},
}

// Message joins rejected names into one display line per reason, e.g.
// "Format non supporté: photo.exe, notes.odt". Empty when nothing was rejected.
func (r *AcceptReport) Message() string {
	if len(r.Rejected) == 0 {
		return ""
	}

	var parts []string
	for _, rl := range reasonLabels {
		var names []string
		for _, rej := range r.Rejected {
			if rej.Reason == rl.reason {
				names = append(names, rej.Name)
			}
		}
		if len(names) > 0 {
			parts = append(parts, rl.label+": "+strings.Join(names, ", "))
		}
	}
	return strings.Join(parts, "; ")
}

// Err returns the first rejection as a ValidationError, or nil.
func (r *AcceptReport) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	return &models.ValidationError{Reason: r.Rejected[0].Reason, Subject: r.Rejected[0].Name}
}

// Package queue holds the approval-queue state machine for prepared
// applications.
//
// Valid status graph:
//
//	prepared ──► submitted
//	    │
//	    └──────► dismissed
//
// submitted and dismissed are terminal states. Drafts enter the queue in the
// prepared state only through the preparer; submission and dismissal happen
// only on explicit user action.
package queue

import (
	"fmt"

	"github.com/applypilot/applypilot/pkg/models"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationPrepared: {models.ApplicationSubmitted, models.ApplicationDismissed},
	// submitted and dismissed are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to an ApplicationStatus, returning an
// error for unknown values.
func ParseStatus(s string) (models.ApplicationStatus, error) {
	st := models.ApplicationStatus(s)
	switch st {
	case models.ApplicationPrepared, models.ApplicationSubmitted, models.ApplicationDismissed:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to models.ApplicationStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s models.ApplicationStatus) bool {
	return s == models.ApplicationSubmitted || s == models.ApplicationDismissed
}

// Package session implements the gaming session state machine: start,
// duration checks, forced termination and the mandatory break between
// sessions.
package session

import "github.com/playguard/playguard/internal/domain"

// validTransitions lists the permitted session status transitions. A
// session never leaves the ended status.
var validTransitions = map[domain.SessionStatus][]domain.SessionStatus{
	domain.SessionActive: {
		domain.SessionEnded,
	},
}

// IsTransitionAllowed reports whether moving between the statuses is valid.
func IsTransitionAllowed(from, to domain.SessionStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == to {
			return true
		}
	}

	return false
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe session
// status transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

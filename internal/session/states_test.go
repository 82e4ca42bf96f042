package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/playguard/playguard/internal/domain"
)

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name    string
		from    domain.SessionStatus
		to      domain.SessionStatus
		allowed bool
	}{
		{"active to ended", domain.SessionActive, domain.SessionEnded, true},
		{"ended is terminal", domain.SessionEnded, domain.SessionActive, false},
		{"ended to ended", domain.SessionEnded, domain.SessionEnded, false},
		{"active to active", domain.SessionActive, domain.SessionActive, false},
		{"unknown status", domain.SessionStatus("paused"), domain.SessionEnded, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, IsTransitionAllowed(tc.from, tc.to))
		})
	}
}

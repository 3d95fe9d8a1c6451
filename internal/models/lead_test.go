package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to LeadStatus
	}{
		{StatusNew, StatusScored},
		{StatusNew, StatusRejected},
		{StatusScored, StatusQueued},
		{StatusScored, StatusRejected},
		{StatusQueued, StatusContacted},
		{StatusQueued, StatusFailed},
		{StatusQueued, StatusRejected},
		{StatusContacted, StatusReplied},
		{StatusContacted, StatusForwarded},
		{StatusContacted, StatusNoReply},
		{StatusReplied, StatusForwarded},
		{StatusReplied, StatusRejected},
	}

	allStatuses := []LeadStatus{
		StatusNew, StatusScored, StatusQueued, StatusContacted,
		StatusReplied, StatusForwarded, StatusRejected, StatusFailed, StatusNoReply,
	}

	allowedSet := make(map[[2]LeadStatus]bool)
	for _, tc := range allowed {
		allowedSet[[2]LeadStatus{tc.from, tc.to}] = true
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	// Everything not listed above is rejected, including self-transitions and
	// anything out of a terminal state.
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if allowedSet[[2]LeadStatus{from, to}] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("bogus", StatusScored))
	assert.False(t, CanTransition(StatusNew, "bogus"))
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []LeadStatus{StatusForwarded, StatusRejected, StatusFailed, StatusNoReply} {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	for _, s := range []LeadStatus{StatusNew, StatusScored, StatusQueued, StatusContacted, StatusReplied} {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

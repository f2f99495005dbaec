package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeadSequenceStateIsDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		state LeadSequenceState
		want  bool
	}{
		{"due", LeadSequenceState{NextSendAt: &past}, true},
		{"exactly now", LeadSequenceState{NextSendAt: &now}, true},
		{"in the future", LeadSequenceState{NextSendAt: &future}, false},
		{"nothing scheduled", LeadSequenceState{}, false},
		{"paused", LeadSequenceState{NextSendAt: &past, IsPaused: true}, false},
		{"completed with stale time", LeadSequenceState{NextSendAt: &past, IsCompleted: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsDue(now))
		})
	}
}

func TestPausesSequence(t *testing.T) {
	assert.False(t, LeadStatusSent.PausesSequence())
	for _, s := range []LeadStatus{LeadStatusReplied, LeadStatusWon, LeadStatusLost, LeadStatusManualPause} {
		assert.True(t, s.PausesSequence(), s)
	}
}

func TestFindStep(t *testing.T) {
	steps := DefaultSequenceSteps()
	assert.Equal(t, 2, FindStep(steps, 2).DelayDays)
	assert.Nil(t, FindStep(steps, 4))
	assert.Nil(t, FindStep(nil, 1))
}

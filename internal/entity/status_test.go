package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from MarkStatus
		to   MarkStatus
		want bool
	}{
		{"pending to processing", MarkStatusPending, MarkStatusProcessing, true},
		{"pending to success", MarkStatusPending, MarkStatusSuccess, true},
		{"pending to failed", MarkStatusPending, MarkStatusFailed, true},
		{"processing to success", MarkStatusProcessing, MarkStatusSuccess, true},
		{"processing to failed", MarkStatusProcessing, MarkStatusFailed, true},
		{"failed retries", MarkStatusFailed, MarkStatusProcessing, true},
		{"failed to success", MarkStatusFailed, MarkStatusSuccess, true},
		{"success is sticky", MarkStatusSuccess, MarkStatusFailed, false},
		{"success never reverts to pending", MarkStatusSuccess, MarkStatusPending, false},
		{"success never reprocesses", MarkStatusSuccess, MarkStatusProcessing, false},
		{"no self transition", MarkStatusPending, MarkStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestAccessStatusCanTransition(t *testing.T) {
	// Only pending admits transitions; every finalized status is terminal.
	assert.True(t, AccessStatusPending.CanTransition(AccessStatusSuccess))
	assert.True(t, AccessStatusPending.CanTransition(AccessStatusFailed))
	assert.True(t, AccessStatusPending.CanTransition(AccessStatusIncomplete))

	for _, s := range []AccessStatus{AccessStatusSuccess, AccessStatusFailed, AccessStatusIncomplete} {
		assert.True(t, s.Terminal())
		assert.False(t, s.CanTransition(AccessStatusPending))
		assert.False(t, s.CanTransition(AccessStatusSuccess))
	}
}

func TestMarkStatusTerminal(t *testing.T) {
	assert.True(t, MarkStatusSuccess.Terminal())
	assert.True(t, MarkStatusFailed.Terminal())
	assert.False(t, MarkStatusPending.Terminal())
	assert.False(t, MarkStatusProcessing.Terminal())
}

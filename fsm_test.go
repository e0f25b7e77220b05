package colo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	p := PhaseNormal
	require.NoError(t, p.transitionTo(PhaseCheckpointing))
	require.NoError(t, p.transitionTo(PhaseCompleted))
	assert.Equal(t, PhaseCompleted, p)
}

func TestPhaseInvalidTransitions(t *testing.T) {
	for _, tc := range []struct {
		from, to Phase
	}{
		{PhaseNormal, PhaseCompleted},
		{PhaseCheckpointing, PhaseNormal},
		{PhaseCheckpointing, PhaseCheckpointing},
		{PhaseCompleted, PhaseNormal},
		{PhaseCompleted, PhaseCheckpointing},
		{PhaseCompleted, PhaseCompleted},
	} {
		p := tc.from
		err := p.transitionTo(tc.to)
		assert.Errorf(t, err, "%s -> %s should be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, p, "a rejected transition must not change the phase")
	}
}

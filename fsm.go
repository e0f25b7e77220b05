package colo

import "fmt"

// Phase represents a small finite state machine tracked independently by each
// side of the replication pair. It has the following transitions:
// ∅             → Normal
// Normal        → Checkpointing
// Checkpointing → Completed
//
// Entering Checkpointing happens exactly once per phase entry, and leaving it
// for Completed happens exactly once per phase exit, on every exit path.
// Neither side ever reads its peer's phase directly; it only infers it from
// received commands.
type Phase string

const (
	// PhaseNormal is the initial state: ordinary, non-replicated execution.
	PhaseNormal Phase = "normal"
	// PhaseCheckpointing is the state during which lock-step checkpoint
	// cycles run.
	PhaseCheckpointing Phase = "checkpointing"
	// PhaseCompleted is the state after the phase has ended, whether by a
	// requested finish or by any failure.
	PhaseCompleted Phase = "completed"
)

var validTransitions = map[Phase][]Phase{
	PhaseNormal: {
		PhaseCheckpointing,
	},
	PhaseCheckpointing: {
		PhaseCompleted,
	},
	PhaseCompleted: {},
}

func (p *Phase) canTransitionTo(phase Phase) error {
	for _, target := range validTransitions[*p] {
		if target == phase {
			return nil
		}
	}
	return fmt.Errorf("unable to transition from %s to %s", *p, phase)
}

func (p *Phase) transitionTo(phase Phase) error {
	if err := p.canTransitionTo(phase); err != nil {
		return err
	}
	*p = phase
	return nil
}

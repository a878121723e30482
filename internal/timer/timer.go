// Package timer implements the room timer as a pure function of the
// persisted state and a clock reading. Two readers with the same state
// and the same instant always compute the same phase and remaining
// time, so no per-second tick fan-out is needed to keep participants
// in sync.
package timer

import "time"

type Phase string

const (
	PhaseWork       Phase = "work"
	PhaseShortBreak Phase = "short_break"
	PhaseLongBreak  Phase = "long_break"
)

const (
	workDuration       = 25 * time.Minute
	shortBreakDuration = 5 * time.Minute
	longBreakDuration  = 15 * time.Minute

	// cyclesPerLongBreak is how many completed work phases earn a long
	// break instead of a short one.
	cyclesPerLongBreak = 4
)

func (p Phase) Duration() time.Duration {
	switch p {
	case PhaseShortBreak:
		return shortBreakDuration
	case PhaseLongBreak:
		return longBreakDuration
	default:
		return workDuration
	}
}

// State is the persisted timer state. CycleCount is 1-based and counts
// the work phase currently underway or, during a break, the one just
// finished.
type State struct {
	Phase      Phase
	StartedAt  time.Time
	CycleCount int
}

// View is a State resolved against an instant.
type View struct {
	State
	Remaining time.Duration
	Progress  float64
}

// Initial is the state of a freshly created room: the first work phase
// starting now.
func Initial(now time.Time) State {
	return State{Phase: PhaseWork, StartedAt: now, CycleCount: 1}
}

// DueAt is the instant the current phase ends.
func (s State) DueAt() time.Time {
	return s.StartedAt.Add(s.Phase.Duration())
}

// next is the state after one phase boundary. The new phase starts at
// startedAt, the boundary instant, not at whatever time the boundary
// was noticed, so the schedule never drifts.
func (s State) next(startedAt time.Time) State {
	if s.Phase == PhaseWork {
		next := PhaseShortBreak
		if s.CycleCount%cyclesPerLongBreak == 0 {
			next = PhaseLongBreak
		}
		return State{Phase: next, StartedAt: startedAt, CycleCount: s.CycleCount}
	}

	return State{Phase: PhaseWork, StartedAt: startedAt, CycleCount: s.CycleCount + 1}
}

// Advance rolls s forward through every phase boundary at or before
// now, which may be several if the room sat unobserved. It reports
// whether any boundary was crossed. A now before the current boundary
// returns s unchanged.
func Advance(s State, now time.Time) (State, bool) {
	var transitioned bool
	for !now.Before(s.DueAt()) {
		s = s.next(s.DueAt())
		transitioned = true
	}
	return s, transitioned
}

// ViewAt resolves s against now. Remaining and Progress are clamped,
// so a now outside the phase window still yields a well-formed view.
func (s State) ViewAt(now time.Time) View {
	d := s.Phase.Duration()

	elapsed := now.Sub(s.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > d {
		elapsed = d
	}

	return View{
		State:     s,
		Remaining: d - elapsed,
		Progress:  float64(elapsed) / float64(d),
	}
}

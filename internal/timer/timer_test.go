package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)

func TestInitial(t *testing.T) {
	s := Initial(epoch)
	assert.Equal(t, State{Phase: PhaseWork, StartedAt: epoch, CycleCount: 1}, s)
	assert.Equal(t, epoch.Add(25*time.Minute), s.DueAt())
}

func TestAdvance_deterministic(t *testing.T) {
	s := Initial(epoch)
	now := epoch.Add(47 * time.Minute)

	a, _ := Advance(s, now)
	b, _ := Advance(s, now)
	assert.Equal(t, a, b, "expected the same inputs to yield the same state")
}

func TestAdvance_idempotent(t *testing.T) {
	s := Initial(epoch)
	now := epoch.Add(26 * time.Minute)

	once, transitioned := Advance(s, now)
	assert.True(t, transitioned)

	twice, transitioned := Advance(once, now)
	assert.False(t, transitioned, "expected no further transition at the same instant")
	assert.Equal(t, once, twice)
}

func TestAdvance_anchorsAtBoundary(t *testing.T) {
	s := Initial(epoch)

	// noticed 3 minutes late, the break still starts on schedule
	next, transitioned := Advance(s, epoch.Add(28*time.Minute))
	assert.True(t, transitioned)
	assert.Equal(t, PhaseShortBreak, next.Phase)
	assert.Equal(t, epoch.Add(25*time.Minute), next.StartedAt)
	assert.Equal(t, 1, next.CycleCount)
}

func TestAdvance_notDue(t *testing.T) {
	s := Initial(epoch)

	next, transitioned := Advance(s, epoch.Add(24*time.Minute+59*time.Second))
	assert.False(t, transitioned)
	assert.Equal(t, s, next)
}

func TestAdvance_breakSchedule(t *testing.T) {
	breaks := []Phase{PhaseShortBreak, PhaseShortBreak, PhaseShortBreak, PhaseLongBreak, PhaseShortBreak}
	cyclesAtBreak := []int{1, 2, 3, 4, 5}

	s := Initial(epoch)
	for i, want := range breaks {
		s, _ = Advance(s, s.DueAt())
		assert.Equalf(t, want, s.Phase, "break %d", i+1)
		assert.Equalf(t, cyclesAtBreak[i], s.CycleCount, "cycle count during break %d", i+1)

		s, _ = Advance(s, s.DueAt())
		assert.Equalf(t, PhaseWork, s.Phase, "work phase after break %d", i+1)
		assert.Equalf(t, cyclesAtBreak[i]+1, s.CycleCount, "cycle count after break %d", i+1)
	}
}

func TestAdvance_catchUpAcrossManyPhases(t *testing.T) {
	// 200 minutes of nobody watching. Cycles 1-3 take 30m each (work
	// plus short break), cycle 4 takes 40m (long break), cycles 5-6
	// take 30m each, so cycle 7's work phase starts at 190m.
	s := Initial(epoch)
	next, transitioned := Advance(s, epoch.Add(200*time.Minute))

	assert.True(t, transitioned)
	assert.Equal(t, PhaseWork, next.Phase)
	assert.Equal(t, 7, next.CycleCount)
	assert.Equal(t, epoch.Add(190*time.Minute), next.StartedAt)
}

func TestViewAt(t *testing.T) {
	tt := []struct {
		name      string
		state     State
		now       time.Time
		remaining time.Duration
		progress  float64
	}{
		{
			name:      "start of work",
			state:     Initial(epoch),
			now:       epoch,
			remaining: 25 * time.Minute,
			progress:  0,
		},
		{
			name:      "midway through work",
			state:     Initial(epoch),
			now:       epoch.Add(12*time.Minute + 30*time.Second),
			remaining: 12*time.Minute + 30*time.Second,
			progress:  0.5,
		},
		{
			name:      "short break",
			state:     State{Phase: PhaseShortBreak, StartedAt: epoch, CycleCount: 1},
			now:       epoch.Add(4 * time.Minute),
			remaining: time.Minute,
			progress:  0.8,
		},
		{
			name:      "now before the phase started",
			state:     State{Phase: PhaseWork, StartedAt: epoch, CycleCount: 1},
			now:       epoch.Add(-time.Minute),
			remaining: 25 * time.Minute,
			progress:  0,
		},
		{
			name:      "now past the phase end",
			state:     State{Phase: PhaseLongBreak, StartedAt: epoch, CycleCount: 4},
			now:       epoch.Add(time.Hour),
			remaining: 0,
			progress:  1,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			v := tc.state.ViewAt(tc.now)
			assert.Equal(t, tc.state, v.State)
			assert.Equal(t, tc.remaining, v.Remaining)
			assert.InDelta(t, tc.progress, v.Progress, 1e-9)
		})
	}
}

// Package clock provides the simulated time source shared by every
// component of a run.
package clock

import "time"

// Source yields the current simulated time. Exactly one Source exists per
// process; components read it instead of the wall clock.
type Source interface {
	Now() time.Time
}

const (
	MinMultiplier = 1.0
	MaxMultiplier = 10.0
)

// Sim scales wall time by a fixed multiplier from an anchor instant, so one
// wall second counts as multiplier simulated seconds.
type Sim struct {
	anchor     time.Time
	start      time.Time
	multiplier float64
}

// NewSim anchors a simulated clock at the current wall instant. start is
// the simulated time the run begins at. Multipliers outside [1, 10] are
// clamped.
func NewSim(start time.Time, multiplier float64) *Sim {
	if multiplier < MinMultiplier {
		multiplier = MinMultiplier
	}
	if multiplier > MaxMultiplier {
		multiplier = MaxMultiplier
	}
	return &Sim{
		anchor:     time.Now(),
		start:      start,
		multiplier: multiplier,
	}
}

func (s *Sim) Now() time.Time {
	elapsed := time.Since(s.anchor)
	return s.start.Add(time.Duration(float64(elapsed) * s.multiplier))
}

func (s *Sim) Multiplier() float64 { return s.multiplier }

// Manual is a Source that moves only when told. Tests and scripted runs
// drive it.
type Manual struct {
	t time.Time
}

func NewManual(t time.Time) *Manual { return &Manual{t: t} }

func (m *Manual) Now() time.Time { return m.t }

func (m *Manual) Advance(d time.Duration) { m.t = m.t.Add(d) }

func (m *Manual) Set(t time.Time) { m.t = t }

package sim

import (
	"math"

	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/scenario"
)

const (
	dragCoeff     = 0.02
	minForceSpeed = 0.5
	mpsPerMPH     = 0.44704
)

// Train integrates longitudinal motion for one simulated train. Faults are
// the failure flags the model reports to the controller; a failed engine
// produces no traction and a failed service brake no retardation, which is
// what forces the controller's latched emergency stop.
type Train struct {
	Spec     scenario.TrainSpec
	SpeedMPS float64
	Faults   ctrl.Faults
}

// Step advances the train by dt seconds under the given command. Traction
// force is power over speed, floored at minForceSpeed so a standing train
// can pull away, and capped at the adhesion limit MaxForceN.
func (t *Train) Step(cmd ctrl.CommandSnapshot, dt float64) {
	accel := -dragCoeff * t.SpeedMPS
	switch {
	case cmd.EmergencyBrake:
		accel -= t.Spec.EmergencyBrakeMPS2
	case cmd.ServiceBrake && !t.Faults.Brake:
		accel -= t.Spec.ServiceBrakeMPS2
	case t.Faults.Engine:
	default:
		force := cmd.PowerKW * 1000.0 / math.Max(t.SpeedMPS, minForceSpeed)
		if force > t.Spec.MaxForceN {
			force = t.Spec.MaxForceN
		}
		accel += force / t.Spec.MassKG
	}
	t.SpeedMPS += accel * dt
	if t.SpeedMPS < 0 {
		t.SpeedMPS = 0
	}
}

func (t *Train) SpeedMPH() float64 { return t.SpeedMPS / mpsPerMPH }

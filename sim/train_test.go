package sim

import (
	"math"
	"testing"

	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/scenario"
)

func testSpec() scenario.TrainSpec {
	return scenario.TrainSpec{
		MassKG:             40900,
		MaxForceN:          120000,
		ServiceBrakeMPS2:   1.2,
		EmergencyBrakeMPS2: 2.73,
	}
}

func TestTrainTractionCapped(t *testing.T) {
	tr := &Train{Spec: testSpec()}
	tr.Step(ctrl.CommandSnapshot{PowerKW: 120}, 0.1)
	want := testSpec().MaxForceN / testSpec().MassKG * 0.1
	if math.Abs(tr.SpeedMPS-want) > 1e-9 {
		t.Fatalf("SpeedMPS after one step: %v, want %v", tr.SpeedMPS, want)
	}
}

func TestTrainServiceBrakeStops(t *testing.T) {
	tr := &Train{Spec: testSpec(), SpeedMPS: 10}
	for i := 0; i < 200; i++ {
		tr.Step(ctrl.CommandSnapshot{ServiceBrake: true}, 0.1)
	}
	if tr.SpeedMPS != 0 {
		t.Fatalf("SpeedMPS after sustained service brake: %v, want 0", tr.SpeedMPS)
	}
}

func TestTrainBrakeFaultDisablesServiceBrake(t *testing.T) {
	tr := &Train{Spec: testSpec(), SpeedMPS: 10, Faults: ctrl.Faults{Brake: true}}
	tr.Step(ctrl.CommandSnapshot{ServiceBrake: true}, 0.1)
	if tr.SpeedMPS < 9.9 {
		t.Fatalf("SpeedMPS: %v, failed service brake should only coast", tr.SpeedMPS)
	}
}

func TestTrainEmergencyBrakeSurvivesBrakeFault(t *testing.T) {
	tr := &Train{Spec: testSpec(), SpeedMPS: 10, Faults: ctrl.Faults{Brake: true}}
	tr.Step(ctrl.CommandSnapshot{EmergencyBrake: true}, 0.1)
	want := 10 - (testSpec().EmergencyBrakeMPS2+dragCoeff*10)*0.1
	if math.Abs(tr.SpeedMPS-want) > 1e-9 {
		t.Fatalf("SpeedMPS: %v, want %v", tr.SpeedMPS, want)
	}
}

func TestTrainEngineFaultCoasts(t *testing.T) {
	tr := &Train{Spec: testSpec(), SpeedMPS: 10, Faults: ctrl.Faults{Engine: true}}
	tr.Step(ctrl.CommandSnapshot{PowerKW: 120}, 0.1)
	want := 10 - dragCoeff*10*0.1
	if math.Abs(tr.SpeedMPS-want) > 1e-9 {
		t.Fatalf("SpeedMPS: %v, want %v (coasting)", tr.SpeedMPS, want)
	}
}

func TestTrainSpeedNeverNegative(t *testing.T) {
	tr := &Train{Spec: testSpec(), SpeedMPS: 0.1}
	tr.Step(ctrl.CommandSnapshot{EmergencyBrake: true}, 1.0)
	if tr.SpeedMPS != 0 {
		t.Fatalf("SpeedMPS: %v, want clamp at 0", tr.SpeedMPS)
	}
}

func TestTrainSpeedMPH(t *testing.T) {
	tr := &Train{Spec: testSpec(), SpeedMPS: 20 * mpsPerMPH}
	if got := tr.SpeedMPH(); math.Abs(got-20) > 1e-9 {
		t.Fatalf("SpeedMPH: %v, want 20", got)
	}
}

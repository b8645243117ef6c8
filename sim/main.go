// Package sim runs one scripted train against the onboard controller: a
// longitudinal train model, a wayside walker feeding block signals, and a
// tick loop gluing them to the controller and the display feed.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/kmac08/onboard/clock"
	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/feed"
	"github.com/kmac08/onboard/input"
	"github.com/kmac08/onboard/scenario"
	"github.com/kmac08/onboard/tracks"
)

const (
	authorityThresholdYd = 50.0
	initialCabinF        = 72.0
	cabinLagS            = 30.0
	defaultHz            = 10.0
)

type Conf struct {
	Catalog  *tracks.Catalog
	Clock    clock.Source
	Scenario *scenario.Scenario

	// Inputs, when set, is drained every tick on top of the scripted
	// driver events. Publisher, when set, receives one display snapshot
	// per tick.
	Inputs    *input.Queue
	Publisher *feed.Publisher[ctrl.DisplaySnapshot]
}

type Simulation struct {
	conf    Conf
	ctrl    *ctrl.Controller
	train   *Train
	wayside *Wayside

	driver   ctrl.DriverSnapshot
	paxBrake bool
	cabinF   float64

	start   time.Time
	last    time.Time
	driverI int
	faultI  int
}

func New(conf Conf) (*Simulation, error) {
	c, err := ctrl.New(conf.Catalog, conf.Clock, conf.Scenario.Init)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", conf.Scenario.Name, err)
	}
	w, err := newWayside(conf.Catalog, conf.Scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", conf.Scenario.Name, err)
	}
	now := conf.Clock.Now()
	return &Simulation{
		conf:    conf,
		ctrl:    c,
		train:   &Train{Spec: conf.Scenario.Train},
		wayside: w,
		driver:  ctrl.DriverSnapshot{SetCabinTempF: initialCabinF},
		cabinF:  initialCabinF,
		start:   now,
		last:    now,
	}, nil
}

// Step runs one tick: due scripted events and live input are applied, the
// sensor snapshot is assembled, the controller updates, and the train
// integrates the resulting command.
func (s *Simulation) Step() ctrl.DisplaySnapshot {
	now := s.conf.Clock.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	elapsed := now.Sub(s.start).Seconds()

	for s.driverI < len(s.conf.Scenario.Driver) && s.conf.Scenario.Driver[s.driverI].AtS <= elapsed {
		s.applyDriver(s.conf.Scenario.Driver[s.driverI])
		s.driverI++
	}
	if s.conf.Inputs != nil {
		s.conf.Inputs.Drain(s.applyInput)
	}
	for s.faultI < len(s.conf.Scenario.Faults) && s.conf.Scenario.Faults[s.faultI].AtS <= elapsed {
		ev := s.conf.Scenario.Faults[s.faultI]
		s.train.Faults = ctrl.Faults{Engine: ev.Engine, Signal: ev.Signal, Brake: ev.Brake}
		s.paxBrake = ev.Passenger
		s.faultI++
	}

	sensor := ctrl.SensorSnapshot{
		ActualSpeedMPH:          s.train.SpeedMPH(),
		Faults:                  s.train.Faults,
		PassengerEmergencyBrake: s.paxBrake,
		CabinTempF:              s.cabinF,
		AuthorityThresholdYd:    authorityThresholdYd,
	}
	s.wayside.Advance(elapsed, s.train.SpeedMPS, dt, &sensor)

	s.ctrl.Update(sensor, s.driver)
	cmd := s.ctrl.Command()
	s.train.Step(cmd, dt)
	s.stepCabin(cmd, dt)

	disp := s.ctrl.Display()
	if s.conf.Publisher != nil {
		s.conf.Publisher.Publish(disp)
	}
	return disp
}

// Run steps the simulation at the given tick rate until the context ends.
func (s *Simulation) Run(ctx context.Context, hz float64) error {
	if hz <= 0 {
		hz = defaultHz
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}

// Controller exposes the controller under simulation.
func (s *Simulation) Controller() *ctrl.Controller { return s.ctrl }

func (s *Simulation) applyDriver(ev scenario.DriverEvent) {
	switch ev.Action {
	case "auto-mode":
		s.driver.AutoMode = ev.On
	case "set-speed":
		s.driver.SetSpeedMPH = ev.Value
	case "service-brake":
		s.driver.ServiceBrake = ev.On
	case "emergency-brake":
		s.driver.EmergencyBrake = ev.On
	case "headlights":
		s.driver.Headlights = ev.On
	case "interior-lights":
		s.driver.InteriorLights = ev.On
	case "door-left":
		s.driver.DoorLeft = ev.On
	case "door-right":
		s.driver.DoorRight = ev.On
	case "set-cabin-temp":
		s.driver.SetCabinTempF = ev.Value
	case "set-gains":
		s.ctrl.SetGains(ev.Value, ev.KI)
	}
}

func (s *Simulation) applyInput(ev input.Event) {
	switch ev.Kind {
	case input.KindAutoMode:
		s.driver.AutoMode = ev.Bool
	case input.KindSetSpeed:
		s.driver.SetSpeedMPH = ev.Value
	case input.KindServiceBrake:
		s.driver.ServiceBrake = ev.Bool
	case input.KindEmergencyBrake:
		s.driver.EmergencyBrake = ev.Bool
	case input.KindHeadlights:
		s.driver.Headlights = ev.Bool
	case input.KindInteriorLights:
		s.driver.InteriorLights = ev.Bool
	case input.KindDoorLeft:
		s.driver.DoorLeft = ev.Bool
	case input.KindDoorRight:
		s.driver.DoorRight = ev.Bool
	case input.KindSetCabinTemp:
		s.driver.SetCabinTempF = ev.Value
	case input.KindSetGains:
		s.ctrl.SetGains(ev.Value, ev.Aux)
	}
}

// cabin temperature relaxes toward the commanded setpoint with a fixed lag
func (s *Simulation) stepCabin(cmd ctrl.CommandSnapshot, dt float64) {
	frac := dt / cabinLagS
	if frac > 1 {
		frac = 1
	}
	s.cabinF += (cmd.SetCabinTempF - s.cabinF) * frac
}

// Package ctrl implements the onboard controller for a single train. The
// controller consumes one sensor snapshot and one driver snapshot per tick
// and produces the command snapshot sent back to the train model. Power
// comes from a redundantly evaluated PI law; movement authority comes from
// a fixed four-block lookahead fed by wayside signals.
package ctrl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/kmac08/onboard/clock"
	"github.com/kmac08/onboard/tracks"
)

const (
	maxPowerKW = 120.0
	defaultKP  = 12.0
	defaultKI  = 1.2

	mphToMPS      = 0.44704
	metersToYards = 1.09361

	dwellSeconds     = 60.0
	moveThresholdMPH = 0.1
	queueCap         = 4

	noInformation = "No Information"
)

var validate = validator.New()

// Controller is the onboard controller for one train. It is not safe for
// concurrent use; callers serialize Update against the read methods.
type Controller struct {
	cat *tracks.Catalog
	clk clock.Source

	line    tracks.Line
	trainID string

	kp       float64
	ki       float64
	gainsSet bool

	autoMode bool

	currentBlock       int
	currentSpeedLimit  float64
	currentUnderground bool
	currentCommanded   int
	currentAuthorized  bool
	queue              blockQueue

	authorityYd float64
	distanceM   float64
	hasMoved    bool

	lastEntered     bool
	lastEnteredSeen bool

	integral       float64
	lastTime       time.Time
	setpoint       float64
	manualSetSpeed float64
	startBraking   bool

	stationTimer   float64
	stationTiming  bool
	stationWaiting bool

	faultBrake bool
	lastFaults Faults

	wasUnderground  bool
	preUGHeadlights bool
	preUGInterior   bool

	ticks      uint64
	lastSensor SensorSnapshot

	out CommandSnapshot
}

// New builds a controller from the initial wayside handoff. A catalog for
// the wrong line, an invalid init, or a current block the catalog does not
// know are all refused; queued blocks missing from the catalog are kept
// with their provided data and a warning.
func New(cat *tracks.Catalog, clk clock.Source, init Init) (*Controller, error) {
	if cat == nil {
		return nil, errors.New("ctrl: nil catalog")
	}
	if clk == nil {
		return nil, errors.New("ctrl: nil clock source")
	}
	if err := validate.Struct(init); err != nil {
		return nil, fmt.Errorf("ctrl: invalid init: %w", err)
	}
	line, err := tracks.ParseLine(init.Line)
	if err != nil {
		return nil, fmt.Errorf("ctrl: %w", err)
	}
	if line != cat.Line() {
		return nil, fmt.Errorf("ctrl: init is for the %s line but the catalog holds %s", line, cat.Line())
	}
	facts, ok := cat.LookupBlock(init.CurrentBlock)
	if !ok {
		return nil, fmt.Errorf("ctrl: current block %d not in %s line catalog", init.CurrentBlock, line)
	}

	kp, ki := init.KP, init.KI
	if kp == 0 {
		kp = defaultKP
	}
	if ki == 0 {
		ki = defaultKI
	}

	c := &Controller{
		cat:                cat,
		clk:                clk,
		line:               line,
		trainID:            init.TrainID,
		kp:                 kp,
		ki:                 ki,
		autoMode:           true,
		currentBlock:       init.CurrentBlock,
		currentSpeedLimit:  facts.SpeedLimitMPH,
		currentUnderground: facts.Underground,
		currentCommanded:   init.CommandedSpeed,
		currentAuthorized:  init.Authorized,
		lastTime:           clk.Now(),
		lastSensor:         defaultSensor(),
	}
	for _, sig := range init.Lookahead {
		c.addBlock(sig)
	}
	name, side := c.stationNameSide(init.NextStation)
	c.out = CommandSnapshot{
		SetCabinTempF:   72.0,
		TrainID:         init.TrainID,
		NextStationName: name,
		NextStationSide: side,
	}
	zap.S().Infow("controller ready",
		"train", c.trainID, "line", line, "block", c.currentBlock,
		"speed-limit-mph", c.currentSpeedLimit, "underground", c.currentUnderground,
		"queued", c.queue.numbers())
	return c, nil
}

// defaultSensor is what read methods see before the first Update.
func defaultSensor() SensorSnapshot {
	return SensorSnapshot{CabinTempF: 72.0, AuthorityThresholdYd: 50.0}
}

// Update advances the controller by one tick. dt is the difference between
// consecutive clock readings. Wayside signals, dwell logic, driver input
// and the brake interlocks apply in a fixed order so that the interlocks
// always have the last word on power.
func (c *Controller) Update(sensor SensorSnapshot, driver DriverSnapshot) {
	now := c.clk.Now()
	dt := now.Sub(c.lastTime).Seconds()
	c.lastTime = now

	c.ticks++
	if c.ticks%50 == 0 {
		zap.S().Debugf("update #%d at %s (dt=%.4fs)", c.ticks, now.Format("15:04:05.000"), dt)
	}

	c.lastSensor = sensor

	c.out.NextStationName, c.out.NextStationSide = c.stationNameSide(sensor.NextStation)

	c.trackPosition(sensor, dt)
	c.handleProgression(sensor)
	c.updateEdgeDiagnostic()

	c.autoMode = driver.AutoMode

	c.handleStationStop(sensor, dt)

	// Stopped with no authority in auto: light the cabin and open doors on
	// the platform side of the upcoming station, if it is known.
	if c.autoMode && c.authorityYd == 0 && sensor.ActualSpeedMPH < moveThresholdMPH {
		c.out.InteriorLights = true
		if st, ok := c.cat.LookupStation(sensor.NextStation); ok {
			switch strings.ToLower(st.PlatformSide) {
			case "left":
				c.out.DoorLeft = true
				c.out.DoorRight = false
			case "right":
				c.out.DoorLeft = false
				c.out.DoorRight = true
			case "both":
				c.out.DoorLeft = true
				c.out.DoorRight = true
			}
		}
	}

	// Doors never stay open in motion, in either mode.
	if sensor.ActualSpeedMPH > moveThresholdMPH {
		c.out.DoorLeft = false
		c.out.DoorRight = false
		if c.autoMode {
			c.out.InteriorLights = false
		}
	}

	c.handleFaults(sensor)

	if !c.gainsSet {
		c.out.PowerKW = 0
		zap.S().Debugw("power disabled until gains are set", "train", c.trainID)
	} else {
		if !c.autoMode {
			c.manualSetSpeed = driver.SetSpeedMPH
		}
		c.out.PowerKW = c.calcPower(sensor, dt)
	}
	if !c.autoMode {
		c.out.ServiceBrake = driver.ServiceBrake
		c.out.InteriorLights = driver.InteriorLights
		c.out.Headlights = driver.Headlights
		if sensor.ActualSpeedMPH > moveThresholdMPH {
			c.out.DoorLeft = false
			c.out.DoorRight = false
		} else {
			c.out.DoorLeft = driver.DoorLeft
			c.out.DoorRight = driver.DoorRight
		}
		c.out.SetCabinTempF = driver.SetCabinTempF
	}

	// Release a controller-initiated service brake; the checks below turn
	// it back on when braking is still required.
	if c.startBraking {
		c.out.ServiceBrake = false
	}

	if sensor.Faults.Engine {
		c.out.PowerKW = 0
		c.integral = 0
		zap.S().Warnw("engine failure, output power cut", "train", c.trainID)
	}

	if c.out.ServiceBrake || c.authorityYd <= sensor.AuthorityThresholdYd || sensor.ActualSpeedMPH > c.setpoint {
		c.out.PowerKW = 0
		c.integral = 0
		c.out.ServiceBrake = true
		if c.authorityYd <= sensor.AuthorityThresholdYd || sensor.ActualSpeedMPH > c.setpoint {
			c.startBraking = true
		}
	} else {
		c.startBraking = false
	}

	if driver.EmergencyBrake || sensor.PassengerEmergencyBrake || c.faultBrake {
		c.out.EmergencyBrake = true
		c.out.PowerKW = 0
		c.integral = 0
	} else {
		c.out.EmergencyBrake = false
	}

	if c.autoMode {
		hour := now.Hour()
		c.out.Headlights = hour >= 19 || hour < 7

		// Underground lighting wins over the schedule. Surface states are
		// saved on entry and restored on exit.
		if c.currentUnderground {
			if !c.wasUnderground {
				c.preUGHeadlights = c.out.Headlights
				c.preUGInterior = c.out.InteriorLights
				c.wasUnderground = true
			}
			c.out.Headlights = true
			c.out.InteriorLights = true
		} else if c.wasUnderground {
			c.out.Headlights = c.preUGHeadlights
			c.out.InteriorLights = c.preUGInterior
			c.wasUnderground = false
		}
	}
}

// stationNameSide resolves a station number for display, with a shared
// placeholder for unknown or unset numbers.
func (c *Controller) stationNameSide(number int) (name, side string) {
	if number > 0 {
		if st, ok := c.cat.LookupStation(number); ok {
			return st.Name, st.PlatformSide
		}
	}
	return noInformation, noInformation
}

// Command returns the current output to the train model.
func (c *Controller) Command() CommandSnapshot { return c.out }

// Display assembles the driver-facing view from the last tick's inputs and
// the current output. Before the first Update it reports defaults.
func (c *Controller) Display() DisplaySnapshot {
	name, side := c.stationNameSide(c.lastSensor.NextStation)
	return DisplaySnapshot{
		SetpointSpeedMPH: c.setpoint,
		ActualSpeedMPH:   c.lastSensor.ActualSpeedMPH,
		SpeedLimitMPH:    c.currentSpeedLimit,
		PowerKW:          c.out.PowerKW,
		AuthorityYd:      c.authorityYd,
		CabinTempF:       c.lastSensor.CabinTempF,
		SetCabinTempF:    c.out.SetCabinTempF,
		AutoMode:         c.autoMode,
		EmergencyBrake:   c.out.EmergencyBrake,
		ServiceBrake:     c.out.ServiceBrake,
		Headlights:       c.out.Headlights,
		InteriorLights:   c.out.InteriorLights,
		DoorLeft:         c.out.DoorLeft,
		DoorRight:        c.out.DoorRight,
		NextStation:      name,
		StationSide:      side,
		EngineFailure:    c.lastSensor.Faults.Engine,
		SignalFailure:    c.lastSensor.Faults.Signal,
		BrakeFailure:     c.lastSensor.Faults.Brake,
		KP:               c.kp,
		KI:               c.ki,
		GainsSet:         c.gainsSet,
	}
}

// SetGains installs engineer-provided PI gains and enables power output.
// The set flag persists across Reset.
func (c *Controller) SetGains(kp, ki float64) {
	c.kp = kp
	c.ki = ki
	c.gainsSet = true
	zap.S().Infow("gains set", "train", c.trainID, "kp", kp, "ki", ki)
}

// Gains returns the current PI gains.
func (c *Controller) Gains() (kp, ki float64) { return c.kp, c.ki }

// GainsSet reports whether an engineer has applied gains yet.
func (c *Controller) GainsSet() bool { return c.gainsSet }

// Reset clears accumulated control state: the integral, timers, dwell and
// fault latches, position tracking and the last inputs. Gains, the set
// flag, the operating mode, the current block and the lookahead queue all
// survive. The output snapshot returns to its construction defaults.
func (c *Controller) Reset() {
	c.integral = 0
	c.lastTime = c.clk.Now()
	c.ticks = 0
	c.lastSensor = defaultSensor()
	c.stationTimer = 0
	c.stationTiming = false
	c.stationWaiting = false
	c.hasMoved = false
	c.distanceM = 0
	c.faultBrake = false
	c.lastFaults = Faults{}
	c.setpoint = 0
	c.manualSetSpeed = 0
	c.startBraking = false
	c.wasUnderground = false
	c.preUGHeadlights = false
	c.preUGInterior = false
	c.lastEntered = false
	c.lastEnteredSeen = false
	c.out = CommandSnapshot{
		SetCabinTempF:   72.0,
		TrainID:         c.trainID,
		NextStationName: noInformation,
		NextStationSide: noInformation,
	}
	zap.S().Infow("controller reset", "train", c.trainID, "block", c.currentBlock)
}

// AuthorityYd returns the last computed movement authority in yards.
func (c *Controller) AuthorityYd() float64 { return c.authorityYd }

// CurrentBlock returns the block the train currently occupies.
func (c *Controller) CurrentBlock() int { return c.currentBlock }

// Lookahead returns a copy of the queued upcoming blocks, front to back.
func (c *Controller) Lookahead() []QueuedBlock { return slices.Clone(c.queue.view()) }

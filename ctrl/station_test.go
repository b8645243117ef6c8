package ctrl

import (
	"testing"
	"time"

	"github.com/kmac08/onboard/clock"
)

// dwellTick advances half a second and updates with the given speed, the
// cadence used by the dwell tests so the 60 s timer lands exactly.
func dwellTick(c *Controller, clk *clock.Manual, speed float64) {
	clk.Advance(500 * time.Millisecond)
	c.Update(SensorSnapshot{ActualSpeedMPH: speed, CabinTempF: 72, NextStation: 7}, autoDriver())
}

func TestDwellCompletes(t *testing.T) {
	c, clk := newControllerAt(t, 12, [4]int{13, 14, 15, 16})

	for i := 0; i < 119; i++ {
		dwellTick(c, clk, 0)
	}
	if c.Command().StationStopComplete {
		t.Fatal("stop reported complete before 60 s")
	}
	if !c.stationTiming {
		t.Fatal("dwell timer not running")
	}

	dwellTick(c, clk, 0)
	if !c.Command().StationStopComplete {
		t.Fatal("stop not reported complete after 60 s")
	}
	if c.stationTiming || !c.stationWaiting {
		t.Errorf("dwell state = timing %v, waiting %v", c.stationTiming, c.stationWaiting)
	}
	if c.distanceM != 0 {
		t.Errorf("distance = %v after dwell, want 0", c.distanceM)
	}
}

func TestMovementCancelsDwellTimer(t *testing.T) {
	c, clk := newControllerAt(t, 12, [4]int{13, 14, 15, 16})

	for i := 0; i < 10; i++ {
		dwellTick(c, clk, 0)
	}
	if !c.stationTiming {
		t.Fatal("dwell timer not running")
	}

	dwellTick(c, clk, 5)
	if c.stationTiming || c.stationTimer != 0 {
		t.Errorf("dwell state = timing %v, timer %v after movement", c.stationTiming, c.stationTimer)
	}
	if c.Command().StationStopComplete {
		t.Error("canceled stop reported complete")
	}

	// Stopping again starts a fresh timer.
	dwellTick(c, clk, 0)
	if !c.stationTiming || c.stationTimer != 0.5 {
		t.Errorf("dwell restart = timing %v, timer %v", c.stationTiming, c.stationTimer)
	}
}

func TestDwellWaitPersistsUntilTransition(t *testing.T) {
	c, clk := newControllerAt(t, 12, [4]int{13, 14, 15, 16})

	for i := 0; i < 120; i++ {
		dwellTick(c, clk, 0)
	}
	if !c.stationWaiting {
		t.Fatal("dwell did not complete")
	}

	// Moving drops the output flag but not the internal wait.
	dwellTick(c, clk, 5)
	if c.Command().StationStopComplete {
		t.Error("complete flag held while moving")
	}
	if !c.stationWaiting {
		t.Fatal("wait state lost on movement")
	}

	// Entering the next block finally clears it.
	clk.Advance(500 * time.Millisecond)
	c.Update(SensorSnapshot{
		ActualSpeedMPH:   5,
		CabinTempF:       72,
		NextStation:      7,
		NextBlockEntered: true,
	}, autoDriver())
	if c.stationWaiting {
		t.Error("wait state survived the block transition")
	}
	if c.CurrentBlock() != 13 {
		t.Errorf("block = %d, want 13", c.CurrentBlock())
	}
}

func TestNoDwellOffStation(t *testing.T) {
	c, clk := newController(t)

	for i := 0; i < 10; i++ {
		dwellTick(c, clk, 0)
	}
	if c.stationTiming || c.stationWaiting {
		t.Errorf("dwell state on ordinary block = timing %v, waiting %v", c.stationTiming, c.stationWaiting)
	}
}

func TestDwellDoesNotRestartWhileWaiting(t *testing.T) {
	c, clk := newControllerAt(t, 12, [4]int{13, 14, 15, 16})

	for i := 0; i < 120; i++ {
		dwellTick(c, clk, 0)
	}
	if !c.stationWaiting {
		t.Fatal("dwell did not complete")
	}

	// Still stopped at the platform: the timer must not rearm.
	for i := 0; i < 10; i++ {
		dwellTick(c, clk, 0)
	}
	if c.stationTiming {
		t.Error("dwell timer rearmed while waiting")
	}
	if !c.Command().StationStopComplete {
		t.Error("complete flag dropped while still stopped")
	}
}

package ctrl

import "go.uber.org/zap"

// handleFaults drives the fault-latched emergency brake. Each fault edge is
// logged once. The latch engages when any fault is active and releases only
// once all faults are resolved; driver and passenger emergency brakes are
// tracked separately and unaffected.
func (c *Controller) handleFaults(sensor SensorSnapshot) {
	cur := sensor.Faults
	if cur != c.lastFaults {
		c.logFaultChange("engine", c.lastFaults.Engine, cur.Engine)
		c.logFaultChange("signal", c.lastFaults.Signal, cur.Signal)
		c.logFaultChange("brake", c.lastFaults.Brake, cur.Brake)
	}
	if cur.any() && !c.faultBrake {
		c.faultBrake = true
		zap.S().Warnw("fault emergency brake engaged",
			"train", c.trainID, "active", cur.active())
	} else if !cur.any() && c.faultBrake {
		c.faultBrake = false
		zap.S().Infow("fault emergency brake released, all faults resolved",
			"train", c.trainID)
	}
	c.lastFaults = cur
}

func (c *Controller) logFaultChange(name string, was, is bool) {
	if was == is {
		return
	}
	if is {
		zap.S().Warnw("fault activated", "train", c.trainID, "fault", name)
	} else {
		zap.S().Infow("fault resolved", "train", c.trainID, "fault", name)
	}
}

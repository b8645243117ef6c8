package ctrl

import "go.uber.org/zap"

// handleStationStop runs the dwell timer while the train is stopped on a
// station block. Completing the dwell latches stationWaiting and rezeroes
// the block distance so the platform's far half counts toward authority.
// The latch survives movement; only a block transition clears it.
func (c *Controller) handleStationStop(sensor SensorSnapshot, dt float64) {
	if sensor.ActualSpeedMPH >= moveThresholdMPH {
		c.out.StationStopComplete = false
		if c.stationTiming {
			c.stationTiming = false
			c.stationTimer = 0
			zap.S().Infow("station dwell canceled, train moving",
				"train", c.trainID, "block", c.currentBlock)
		}
		return
	}

	facts, ok := c.cat.LookupBlock(c.currentBlock)
	if !ok || !facts.IsStation {
		return
	}
	if !c.stationTiming && !c.stationWaiting {
		c.stationTiming = true
		c.stationTimer = 0
		zap.S().Infow("station dwell started",
			"train", c.trainID, "block", c.currentBlock, "station", facts.StationName)
	}
	if c.stationTiming {
		c.stationTimer += dt
		if c.stationTimer < dwellSeconds {
			zap.S().Debugw("station dwell in progress",
				"train", c.trainID, "elapsed-s", c.stationTimer)
		} else {
			c.stationTiming = false
			c.stationWaiting = true
			c.distanceM = 0
			zap.S().Infow("station dwell complete, holding for authorization",
				"train", c.trainID, "block", c.currentBlock, "station", facts.StationName)
		}
	}
	if c.stationWaiting {
		c.out.StationStopComplete = true
	}
}

package ctrl

import (
	"math"

	"go.uber.org/zap"
)

// trackPosition integrates actual speed into the distance traveled within
// the current block. Simulator-side overshoot past the block length is
// expected and clamps silently.
func (c *Controller) trackPosition(sensor SensorSnapshot, dt float64) {
	if sensor.ActualSpeedMPH > moveThresholdMPH && !c.hasMoved {
		c.hasMoved = true
		zap.S().Infow("train began moving", "train", c.trainID, "block", c.currentBlock)
	}
	c.distanceM += sensor.ActualSpeedMPH * mphToMPS * dt
	if facts, ok := c.cat.LookupBlock(c.currentBlock); ok {
		if c.distanceM > facts.LengthM {
			c.distanceM = facts.LengthM
		}
	}
}

// recalcAuthority rederives the permitted travel distance. Internal
// arithmetic is in meters; the stored result is yards.
//
// The current block contributes nothing before first movement (the train is
// modeled as standing at its far edge). A station current block caps the
// contribution at the platform midpoint and, until dwell completes, ends
// the calculation there; after dwell the other half counts and the queue is
// walked. The queue walk stops at the first unauthorized block or at a
// station's midpoint, whichever comes first.
func (c *Controller) recalcAuthority() {
	if !c.currentAuthorized {
		c.authorityYd = 0
		zap.S().Debugw("current block unauthorized, authority zero",
			"train", c.trainID, "block", c.currentBlock)
		return
	}
	facts, ok := c.cat.LookupBlock(c.currentBlock)
	if !ok {
		c.authorityYd = 0
		zap.S().Warnw("no facts for current block, authority zero",
			"train", c.trainID, "block", c.currentBlock)
		return
	}

	total := 0.0
	if c.hasMoved {
		if facts.IsStation {
			half := facts.LengthM / 2
			total += math.Max(0, half-c.distanceM)
			if !c.stationWaiting {
				c.authorityYd = total * metersToYards
				return
			}
		} else {
			total += math.Max(0, facts.LengthM-c.distanceM)
		}
	}

	for _, qb := range c.queue.view() {
		if !qb.Authorized {
			zap.S().Debugw("authority stops at unauthorized block",
				"train", c.trainID, "block", qb.Number)
			break
		}
		isStation := false
		if bf, ok := c.cat.LookupBlock(qb.Number); ok {
			isStation = bf.IsStation
		}
		if isStation {
			total += qb.LengthM / 2
			zap.S().Debugw("authority stops at station midpoint",
				"train", c.trainID, "block", qb.Number)
			break
		}
		total += qb.LengthM
	}
	c.authorityYd = total * metersToYards
}

// updateEdgeDiagnostic maintains the legacy at-block-edge output (train past
// 90% of the current block). Diagnostic only: nothing reads it back.
func (c *Controller) updateEdgeDiagnostic() {
	facts, ok := c.cat.LookupBlock(c.currentBlock)
	if !ok || !c.hasMoved || facts.LengthM <= 0 {
		c.out.EdgeOfCurrentBlock = false
		return
	}
	atEdge := c.distanceM >= 0.9*facts.LengthM
	if atEdge != c.out.EdgeOfCurrentBlock {
		c.out.EdgeOfCurrentBlock = atEdge
		zap.S().Debugw("edge-of-block state changed",
			"train", c.trainID, "block", c.currentBlock,
			"at-edge", atEdge, "distance-m", c.distanceM)
	}
}

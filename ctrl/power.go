package ctrl

import (
	"math"

	"go.uber.org/zap"
)

// calcPower runs the PI law three times and votes on the result.
func (c *Controller) calcPower(sensor SensorSnapshot, dt float64) float64 {
	var results [3]float64
	for i := range results {
		results[i] = c.powerOnce(sensor, dt)
	}
	return votePower(results)
}

// powerOnce is one PI evaluation. It advances the integral accumulator, so
// the three redundant evaluations of a tick see successive integrals and
// only agree exactly when the integral term is inert.
func (c *Controller) powerOnce(sensor SensorSnapshot, dt float64) float64 {
	limit := c.currentSpeedLimit
	var commanded float64
	if c.autoMode {
		switch c.currentCommanded {
		case 0:
			commanded = 0
		case 1:
			commanded = limit / 3
		case 2:
			commanded = 2 * limit / 3
		case 3:
			commanded = limit
		default:
			commanded = clamp(float64(c.currentCommanded), 0, 0.8*limit)
		}
	} else {
		commanded = clamp(c.manualSetSpeed, 0, 0.8*limit)
	}
	c.setpoint = commanded

	err := (commanded - sensor.ActualSpeedMPH) * mphToMPS
	c.integral += err * dt
	power := c.kp*err + c.ki*c.integral
	return clamp(power, 0, maxPowerKW)
}

// votePower reconciles three redundant results: exact agreement of at least
// two wins, then a 1 kW tolerance mean, then fail safe at zero.
func votePower(r [3]float64) float64 {
	if r[0] == r[1] && r[1] == r[2] {
		return r[0]
	}
	switch {
	case r[0] == r[1]:
		return r[0]
	case r[0] == r[2]:
		return r[0]
	case r[1] == r[2]:
		return r[1]
	}
	const tolerance = 1.0
	if math.Abs(r[0]-r[1]) <= tolerance &&
		math.Abs(r[1]-r[2]) <= tolerance &&
		math.Abs(r[0]-r[2]) <= tolerance {
		return (r[0] + r[1] + r[2]) / 3
	}
	zap.S().Warnw("power voting disagreement, failing safe", "results", r)
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

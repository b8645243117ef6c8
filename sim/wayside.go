package sim

import (
	"fmt"

	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/scenario"
	"github.com/kmac08/onboard/tracks"
)

const lookaheadDepth = 4

// Wayside walks the scripted route alongside the train. It owns the ground
// truth of where the train is: it toggles the block-transition signal as
// the train crosses boundaries, keeps the controller's lookahead stocked to
// depth, and replays scripted permission rewrites. It raises at most one
// add or update per tick, scripted rewrites first.
type Wayside struct {
	cat    *tracks.Catalog
	route  []int
	events []scenario.WaysideEvent

	routeI     int
	offsetM    float64
	entered    bool
	suppliedI  int
	queueDepth int
	eventI     int

	defaultCommanded int
}

func newWayside(cat *tracks.Catalog, sc *scenario.Scenario) (*Wayside, error) {
	for _, n := range sc.Route {
		if _, ok := cat.LookupBlock(n); !ok {
			return nil, fmt.Errorf("route block %d: not in %s line catalog", n, cat.Line())
		}
	}
	return &Wayside{
		cat:              cat,
		route:            sc.Route,
		events:           sc.Wayside,
		suppliedI:        len(sc.Init.Lookahead),
		queueDepth:       len(sc.Init.Lookahead),
		defaultCommanded: sc.Init.CommandedSpeed,
	}, nil
}

// Advance moves the walker by dt seconds at the train's speed and fills the
// wayside fields of the sensor snapshot.
func (w *Wayside) Advance(nowS, speedMPS, dt float64, sensor *ctrl.SensorSnapshot) {
	if facts, ok := w.cat.LookupBlock(w.route[w.routeI]); ok {
		w.offsetM += speedMPS * dt
		if w.offsetM >= facts.LengthM && w.routeI+1 < len(w.route) {
			w.offsetM -= facts.LengthM
			w.routeI++
			w.entered = !w.entered
			if w.queueDepth > 0 {
				w.queueDepth--
			}
		}
	}
	sensor.NextBlockEntered = w.entered
	sensor.NextStation = w.nextStation()

	if w.eventI < len(w.events) && w.events[w.eventI].AtS <= nowS {
		ev := w.events[w.eventI]
		w.eventI++
		sensor.UpdateBlock = true
		sensor.Block = ctrl.BlockSignal{
			Number:         ev.Block,
			CommandedSpeed: ev.CommandedSpeed,
			Authorized:     ev.Authorized,
		}
		return
	}
	if w.queueDepth < lookaheadDepth && w.suppliedI+1 < len(w.route) {
		w.suppliedI++
		w.queueDepth++
		sensor.AddBlock = true
		sensor.Block = ctrl.BlockSignal{
			Number:         w.route[w.suppliedI],
			CommandedSpeed: w.defaultCommanded,
			Authorized:     true,
		}
	}
}

// nextStation reports the wayside station number of the nearest station
// block at or ahead of the train, 0 when the remaining route has none.
func (w *Wayside) nextStation() int {
	for _, n := range w.route[w.routeI:] {
		if facts, ok := w.cat.LookupBlock(n); ok && facts.IsStation {
			return facts.StationNumber
		}
	}
	return 0
}

// Block reports the route block the walker currently places the train on.
func (w *Wayside) Block() int { return w.route[w.routeI] }

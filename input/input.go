// Package input carries driver-console and engineer events to the control
// loop over a bounded queue, so a burst of console traffic can never stall
// a tick.
package input

import "go.uber.org/zap"

type Kind int

const (
	KindInvalid Kind = iota
	KindAutoMode
	KindSetSpeed
	KindServiceBrake
	KindEmergencyBrake
	KindHeadlights
	KindInteriorLights
	KindDoorLeft
	KindDoorRight
	KindSetCabinTemp
	KindSetGains
)

func (k Kind) String() string {
	switch k {
	case KindAutoMode:
		return "auto-mode"
	case KindSetSpeed:
		return "set-speed"
	case KindServiceBrake:
		return "service-brake"
	case KindEmergencyBrake:
		return "emergency-brake"
	case KindHeadlights:
		return "headlights"
	case KindInteriorLights:
		return "interior-lights"
	case KindDoorLeft:
		return "door-left"
	case KindDoorRight:
		return "door-right"
	case KindSetCabinTemp:
		return "set-cabin-temp"
	case KindSetGains:
		return "set-gains"
	default:
		panic("invalid Kind")
	}
}

// Event is one console action. Toggles use Bool; set-speed and
// set-cabin-temp use Value; set-gains uses Value for kp and Aux for ki.
type Event struct {
	Kind  Kind
	Bool  bool
	Value float64
	Aux   float64
}

// Queue is a bounded event queue. Pushes never block; events past the
// capacity are dropped with a warning.
type Queue struct {
	ch chan Event
}

func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan Event, size)}
}

// TryPush enqueues e, reporting false when the queue is full.
func (q *Queue) TryPush(e Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		zap.S().Warnw("input queue full, event dropped", "kind", e.Kind.String())
		return false
	}
}

// Drain applies every queued event in arrival order and reports how many
// there were.
func (q *Queue) Drain(apply func(Event)) int {
	n := 0
	for {
		select {
		case e := <-q.ch:
			apply(e)
			n++
		default:
			return n
		}
	}
}

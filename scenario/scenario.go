// Package scenario loads scripted runs: a train, its starting handoff, the
// route it will be walked along, and timed driver, wayside and fault
// events.
package scenario

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/kmac08/onboard/ctrl"
)

var validate = validator.New()

// TrainID wraps uuid.UUID for YAML, which does not consult
// encoding.TextUnmarshaler.
type TrainID struct {
	uuid.UUID
}

func (id *TrainID) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("parse %q as UUID: %w", s, err)
	}
	id.UUID = u
	return nil
}

func (id TrainID) MarshalYAML() (any, error) { return id.String(), nil }

// TrainSpec is the physical model the simulator integrates.
type TrainSpec struct {
	ID                 TrainID `yaml:"id"`
	MassKG             float64 `yaml:"mass-kg" validate:"required,gt=0"`
	MaxForceN          float64 `yaml:"max-force-n" validate:"required,gt=0"`
	ServiceBrakeMPS2   float64 `yaml:"service-brake-mps2" validate:"required,gt=0"`
	EmergencyBrakeMPS2 float64 `yaml:"emergency-brake-mps2" validate:"required,gt=0"`
}

// DriverEvent is a timed console action. On serves the toggle actions,
// Value the set-speed and set-cabin-temp actions and the kp of set-gains,
// KI the ki of set-gains.
type DriverEvent struct {
	AtS    float64 `yaml:"at-s" validate:"min=0"`
	Action string  `yaml:"action" validate:"required,oneof=auto-mode set-speed service-brake emergency-brake headlights interior-lights door-left door-right set-cabin-temp set-gains"`
	On     bool    `yaml:"on"`
	Value  float64 `yaml:"value"`
	KI     float64 `yaml:"ki"`
}

// WaysideEvent rewrites one block's movement permission at a given time.
type WaysideEvent struct {
	AtS            float64 `yaml:"at-s" validate:"min=0"`
	Block          int     `yaml:"block" validate:"required,gt=0"`
	Authorized     bool    `yaml:"authorized"`
	CommandedSpeed int     `yaml:"commanded-speed" validate:"min=0,max=3"`
}

// FaultEvent replaces the train model's failure flags at a given time.
type FaultEvent struct {
	AtS       float64 `yaml:"at-s" validate:"min=0"`
	Engine    bool    `yaml:"engine"`
	Signal    bool    `yaml:"signal"`
	Brake     bool    `yaml:"brake"`
	Passenger bool    `yaml:"passenger"`
}

// Scenario is one scripted run. Route lists the blocks the train will walk
// in order; its head must agree with the controller init.
type Scenario struct {
	Name    string         `yaml:"name" validate:"required"`
	Train   TrainSpec      `yaml:"train"`
	Init    ctrl.Init      `yaml:"init"`
	Route   []int          `yaml:"route" validate:"required,min=5,dive,gt=0"`
	Driver  []DriverEvent  `yaml:"driver" validate:"dive"`
	Wayside []WaysideEvent `yaml:"wayside" validate:"dive"`
	Faults  []FaultEvent   `yaml:"faults" validate:"dive"`
}

// Parse decodes and validates scenario YAML. Event lists come out sorted
// by time. A missing train ID is minted, so every loaded scenario is
// uniquely identifiable.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validate.Struct(&sc); err != nil {
		return nil, fmt.Errorf("validate scenario: %w", err)
	}
	if sc.Route[0] != sc.Init.CurrentBlock {
		return nil, fmt.Errorf("route starts at block %d but init is on block %d",
			sc.Route[0], sc.Init.CurrentBlock)
	}
	for i, sig := range sc.Init.Lookahead {
		if sig.Number != sc.Route[i+1] {
			return nil, fmt.Errorf("lookahead[%d] is block %d but the route has %d",
				i, sig.Number, sc.Route[i+1])
		}
	}
	if sc.Train.ID.UUID == uuid.Nil {
		sc.Train.ID = TrainID{uuid.New()}
	}
	slices.SortStableFunc(sc.Driver, func(a, b DriverEvent) int { return cmpFloat(a.AtS, b.AtS) })
	slices.SortStableFunc(sc.Wayside, func(a, b WaysideEvent) int { return cmpFloat(a.AtS, b.AtS) })
	slices.SortStableFunc(sc.Faults, func(a, b FaultEvent) int { return cmpFloat(a.AtS, b.AtS) })
	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

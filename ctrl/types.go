package ctrl

// Faults are the three independent failure flags reported by the train
// model each tick.
type Faults struct {
	Engine bool `json:"engine"`
	Signal bool `json:"signal"`
	Brake  bool `json:"brake"`
}

func (f Faults) any() bool { return f.Engine || f.Signal || f.Brake }

func (f Faults) active() []string {
	var names []string
	if f.Engine {
		names = append(names, "engine")
	}
	if f.Signal {
		names = append(names, "signal")
	}
	if f.Brake {
		names = append(names, "brake")
	}
	return names
}

// BlockSignal is the wayside payload carried by add-block and update-block
// requests. CommandedSpeed is a discrete level (0-3), not a speed.
type BlockSignal struct {
	Number         int  `json:"number" yaml:"number"`
	CommandedSpeed int  `json:"commanded-speed" yaml:"commanded-speed"`
	Authorized     bool `json:"authorized" yaml:"authorized"`
}

// SensorSnapshot is one tick of train-model input. AddBlock, UpdateBlock
// and NextBlockEntered are independent signals; the first two share the
// Block payload, the last is a toggle whose edges mark block transitions.
type SensorSnapshot struct {
	ActualSpeedMPH          float64
	Faults                  Faults
	PassengerEmergencyBrake bool
	CabinTempF              float64
	NextStation             int
	AuthorityThresholdYd    float64
	AddBlock                bool
	UpdateBlock             bool
	Block                   BlockSignal
	NextBlockEntered        bool
}

// DriverSnapshot is one tick of driver-console input. Most fields only
// apply in manual mode; AutoMode and EmergencyBrake always do.
type DriverSnapshot struct {
	AutoMode       bool
	SetSpeedMPH    float64
	SetCabinTempF  float64
	EmergencyBrake bool
	ServiceBrake   bool
	Headlights     bool
	InteriorLights bool
	DoorLeft       bool
	DoorRight      bool
}

// CommandSnapshot is the controller's output to the train model.
type CommandSnapshot struct {
	PowerKW             float64 `json:"power-kw"`
	EmergencyBrake      bool    `json:"emergency-brake"`
	ServiceBrake        bool    `json:"service-brake"`
	Headlights          bool    `json:"headlights"`
	InteriorLights      bool    `json:"interior-lights"`
	DoorLeft            bool    `json:"door-left"`
	DoorRight           bool    `json:"door-right"`
	SetCabinTempF       float64 `json:"set-cabin-temp-f"`
	TrainID             string  `json:"train-id"`
	StationStopComplete bool    `json:"station-stop-complete"`
	NextStationName     string  `json:"next-station-name"`
	NextStationSide     string  `json:"next-station-side"`
	EdgeOfCurrentBlock  bool    `json:"edge-of-current-block"`
}

// DisplaySnapshot is everything a driver-facing display needs for one
// frame.
type DisplaySnapshot struct {
	SetpointSpeedMPH float64 `json:"setpoint-speed-mph"`
	ActualSpeedMPH   float64 `json:"actual-speed-mph"`
	SpeedLimitMPH    float64 `json:"speed-limit-mph"`
	PowerKW          float64 `json:"power-kw"`
	AuthorityYd      float64 `json:"authority-yd"`
	CabinTempF       float64 `json:"cabin-temp-f"`
	SetCabinTempF    float64 `json:"set-cabin-temp-f"`
	AutoMode         bool    `json:"auto-mode"`
	EmergencyBrake   bool    `json:"emergency-brake"`
	ServiceBrake     bool    `json:"service-brake"`
	Headlights       bool    `json:"headlights"`
	InteriorLights   bool    `json:"interior-lights"`
	DoorLeft         bool    `json:"door-left"`
	DoorRight        bool    `json:"door-right"`
	NextStation      string  `json:"next-station"`
	StationSide      string  `json:"station-side"`
	EngineFailure    bool    `json:"engine-failure"`
	SignalFailure    bool    `json:"signal-failure"`
	BrakeFailure     bool    `json:"brake-failure"`
	KP               float64 `json:"kp"`
	KI               float64 `json:"ki"`
	GainsSet         bool    `json:"gains-set"`
}

// QueuedBlock is one lookahead entry. Static facts are copied from the
// catalog at insertion; Authorized and CommandedSpeed may be rewritten in
// place by wayside updates.
type QueuedBlock struct {
	Number         int
	LengthM        float64
	SpeedLimitMPH  float64
	Underground    bool
	Authorized     bool
	CommandedSpeed int
}

// Init describes where a train starts. Lookahead must hold exactly four
// upcoming blocks. Zero gains select the defaults; either way no power is
// produced until SetGains is called.
type Init struct {
	Line           string        `yaml:"line" validate:"required"`
	TrainID        string        `yaml:"train-id" validate:"required"`
	CurrentBlock   int           `yaml:"current-block" validate:"required,gt=0"`
	CommandedSpeed int           `yaml:"commanded-speed" validate:"min=0"`
	Authorized     bool          `yaml:"authorized"`
	Lookahead      []BlockSignal `yaml:"lookahead" validate:"required,len=4"`
	NextStation    int           `yaml:"next-station" validate:"min=0"`
	KP             float64       `yaml:"kp" validate:"min=0"`
	KI             float64       `yaml:"ki" validate:"min=0"`
}

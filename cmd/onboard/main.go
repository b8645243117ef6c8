package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kmac08/onboard/clock"
	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/display"
	"github.com/kmac08/onboard/feed"
	"github.com/kmac08/onboard/input"
	"github.com/kmac08/onboard/scenario"
	"github.com/kmac08/onboard/sim"
	"github.com/kmac08/onboard/tracks"
)

var (
	dbPath       string
	scenarioPath string
	listen       string
	hz           float64
	multiplier   float64
	startAt      string
	console      bool
)

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	flag.StringVar(&dbPath, "db-path", "./tracks.db", "path to block database")
	flag.StringVar(&scenarioPath, "scenario", "./scenario.yaml", "path to scenario YAML")
	flag.StringVar(&listen, "listen", "0.0.0.0:8001", "display server address")
	flag.Float64Var(&hz, "hz", 10, "controller ticks per second")
	flag.Float64Var(&multiplier, "multiplier", 1, "simulated seconds per wall second (1 to 10)")
	flag.StringVar(&startAt, "start-at", "05:00", "simulated time of day the run starts at (HH:MM)")
	flag.BoolVar(&console, "console", false, "read driver commands from stdin")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	err = main2()
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Fatal(err)
	}
}

func main2() error {
	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	cat, err := tracks.Open(dbPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	start, err := startOfDay(startAt)
	if err != nil {
		return err
	}
	clk := clock.NewSim(start, multiplier)
	session := uuid.New()

	pub, mux := feed.New[ctrl.DisplaySnapshot]("display")
	srv := display.NewServer(session, mux)
	go func() {
		zap.S().Infow("display server listening", "addr", listen)
		err := http.ListenAndServe(listen, srv)
		if err != nil {
			zap.S().Errorw("display server stopped", "err", err)
		}
	}()

	events := input.NewQueue(64)
	s, err := sim.New(sim.Conf{
		Catalog:   cat,
		Clock:     clk,
		Scenario:  sc,
		Inputs:    events,
		Publisher: pub,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if console {
		go readConsole(events)
	}

	zap.S().Infow("run starting",
		"session", session, "scenario", sc.Name, "train", sc.Train.ID,
		"line", cat.Line(), "hz", hz, "multiplier", clk.Multiplier(),
		"sim-start", start.Format("15:04"))
	return s.Run(ctx, hz)
}

// startOfDay anchors the simulated clock at hhmm local time today.
func startOfDay(hhmm string) (time.Time, error) {
	tod, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse -start-at %q: %w", hhmm, err)
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), tod.Hour(), tod.Minute(), 0, 0, time.Local), nil
}

// readConsole turns stdin lines into driver events, one action per line.
func readConsole(q *input.Queue) {
	zap.S().Infof("console ready; commands: auto/brake/ebrake/headlights/cabinlights/doorl/doorr on|off, speed N, temp N, gains KP KI")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, err := parseCommand(line)
		if err != nil {
			zap.S().Warnw("bad console command", "line", line, "err", err)
			continue
		}
		q.TryPush(ev)
	}
}

func parseCommand(line string) (input.Event, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	onOff := func(k input.Kind) (input.Event, error) {
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return input.Event{}, fmt.Errorf("%s takes on or off", cmd)
		}
		return input.Event{Kind: k, Bool: args[0] == "on"}, nil
	}
	value := func(k input.Kind) (input.Event, error) {
		if len(args) != 1 {
			return input.Event{}, fmt.Errorf("%s takes one number", cmd)
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return input.Event{}, fmt.Errorf("parse %q: %w", args[0], err)
		}
		return input.Event{Kind: k, Value: v}, nil
	}
	switch cmd {
	case "auto":
		return onOff(input.KindAutoMode)
	case "speed":
		return value(input.KindSetSpeed)
	case "brake":
		return onOff(input.KindServiceBrake)
	case "ebrake":
		return onOff(input.KindEmergencyBrake)
	case "headlights":
		return onOff(input.KindHeadlights)
	case "cabinlights":
		return onOff(input.KindInteriorLights)
	case "doorl":
		return onOff(input.KindDoorLeft)
	case "doorr":
		return onOff(input.KindDoorRight)
	case "temp":
		return value(input.KindSetCabinTemp)
	case "gains":
		if len(args) != 2 {
			return input.Event{}, fmt.Errorf("gains takes kp and ki")
		}
		kp, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return input.Event{}, fmt.Errorf("parse kp %q: %w", args[0], err)
		}
		ki, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return input.Event{}, fmt.Errorf("parse ki %q: %w", args[1], err)
		}
		return input.Event{Kind: input.KindSetGains, Value: kp, Aux: ki}, nil
	}
	return input.Event{}, fmt.Errorf("unknown command %q", cmd)
}

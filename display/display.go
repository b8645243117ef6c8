// Package display serves the driver-facing state over HTTP: a server-sent
// event stream of display snapshots, the latest snapshot as JSON, and
// Prometheus metrics.
package display

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/feed"
)

var (
	actualSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_actual_speed_mph",
		Help: "Actual train speed reported by the train model",
	})
	powerOutput = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_power_kw",
		Help: "Commanded motor power",
	})
	authorityYd = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_authority_yd",
		Help: "Movement authority ahead of the train",
	})
	emergencyBrake = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onboard_emergency_brake",
		Help: "Emergency brake state, 1 while engaged",
	})
	snapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_snapshots_total",
		Help: "Display snapshots published",
	})
	emergencyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboard_emergency_brake_activations_total",
		Help: "Emergency brake activations observed",
	})
)

// Event is one frame of the snapshot stream. Session identifies the run it
// belongs to, so a reconnecting client can tell a restart from a pause.
type Event struct {
	Session  uuid.UUID            `json:"session"`
	Snapshot ctrl.DisplaySnapshot `json:"snapshot"`
}

// Server fans display snapshots out to SSE clients on /sse?stream=snapshot,
// serves the latest one on /snapshot and metrics on /metrics.
type Server struct {
	session uuid.UUID
	mux     *feed.Mux[ctrl.DisplaySnapshot]
	sse     *sse.Server
	sm      *http.ServeMux

	mu     sync.Mutex
	latest *Event

	lastEBrake bool // only touched by forward
}

func NewServer(session uuid.UUID, mux *feed.Mux[ctrl.DisplaySnapshot]) *Server {
	s := &Server{
		session: session,
		mux:     mux,
		sse:     sse.New(),
		sm:      http.NewServeMux(),
	}
	s.sm.Handle("/sse", s.sse)
	s.sm.Handle("/metrics", promhttp.Handler())
	s.sm.HandleFunc("/snapshot", s.handleSnapshot)
	s.sse.CreateStream("snapshot")
	ch := make(chan ctrl.DisplaySnapshot, 8)
	s.mux.Subscribe("display", ch)
	go s.forward(ch)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.sm.ServeHTTP(w, r)
}

func (s *Server) forward(ch chan ctrl.DisplaySnapshot) {
	for snap := range ch {
		s.observe(snap)
		ev := Event{Session: s.session, Snapshot: snap}
		s.mu.Lock()
		s.latest = &ev
		s.mu.Unlock()
		data, err := json.Marshal(ev)
		if err != nil {
			zap.S().Errorw("marshal display event", "err", err)
			continue
		}
		s.sse.TryPublish("snapshot", &sse.Event{Data: data})
	}
}

func (s *Server) observe(snap ctrl.DisplaySnapshot) {
	snapshotsTotal.Inc()
	actualSpeed.Set(snap.ActualSpeedMPH)
	powerOutput.Set(snap.PowerKW)
	authorityYd.Set(snap.AuthorityYd)
	if snap.EmergencyBrake {
		emergencyBrake.Set(1)
		if !s.lastEBrake {
			emergencyTotal.Inc()
		}
	} else {
		emergencyBrake.Set(0)
	}
	s.lastEBrake = snap.EmergencyBrake
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ev := s.latest
	s.mu.Unlock()
	if ev == nil {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ev); err != nil {
		zap.S().Errorw("write snapshot", "err", err)
	}
}

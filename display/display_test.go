package display

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kmac08/onboard/ctrl"
	"github.com/kmac08/onboard/feed"
)

func getSnapshot(t *testing.T, ts *httptest.Server) (Event, int) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/snapshot")
	if err != nil {
		t.Fatalf("GET /snapshot: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Event{}, resp.StatusCode
	}
	var ev Event
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatalf("decode snapshot: %s", err)
	}
	return ev, resp.StatusCode
}

func TestSnapshotEndpoint(t *testing.T) {
	session := uuid.New()
	pub, mux := feed.New[ctrl.DisplaySnapshot]("display-test")
	ts := httptest.NewServer(NewServer(session, mux))
	defer ts.Close()

	if _, code := getSnapshot(t, ts); code != http.StatusNotFound {
		t.Fatalf("status before any snapshot = %d, want 404", code)
	}

	pub.Publish(ctrl.DisplaySnapshot{ActualSpeedMPH: 17.5, PowerKW: 42})

	deadline := time.Now().Add(2 * time.Second)
	for {
		ev, code := getSnapshot(t, ts)
		if code == http.StatusOK {
			if ev.Session != session {
				t.Fatalf("session = %s, want %s", ev.Session, session)
			}
			if ev.Snapshot.ActualSpeedMPH != 17.5 || ev.Snapshot.PowerKW != 42 {
				t.Fatalf("snapshot = %+v", ev.Snapshot)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never became available")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	pub, mux := feed.New[ctrl.DisplaySnapshot]("metrics-test")
	ts := httptest.NewServer(NewServer(uuid.New(), mux))
	defer ts.Close()

	pub.Publish(ctrl.DisplaySnapshot{ActualSpeedMPH: 12, EmergencyBrake: true})

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %s", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("read metrics: %s", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		text := string(body)
		if strings.Contains(text, "onboard_actual_speed_mph 12") &&
			strings.Contains(text, "onboard_emergency_brake 1") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics never reflected the snapshot:\n%s", text)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/claims", "GET", 200, time.Millisecond)
	m.RecordRequest("/claims", "GET", 200, time.Millisecond)
	m.RecordError("/claims/:id/approve", "POST", "CONFLICT")
	m.RecordTransition("OPEN", "DIAGNOSED")

	snap := m.Snapshot()
	if got := snap.Requests["/claims|GET|200"]; got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if got := snap.Errors["/claims/:id/approve|POST|CONFLICT"]; got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
	if got := snap.Transitions["OPEN>DIAGNOSED"]; got != 1 {
		t.Errorf("transitions = %d, want 1", got)
	}

	snap.Transitions["OPEN>DIAGNOSED"] = 100
	if m.Snapshot().Transitions["OPEN>DIAGNOSED"] != 1 {
		t.Error("snapshot shares state with metrics")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordTransition("A", "B")
	if len(m.Snapshot().Requests) != 0 {
		t.Error("nil metrics returned data")
	}
}

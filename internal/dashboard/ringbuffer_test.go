package dashboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/coal/gatetrap/internal/kernel"
)

func makeEvent(id string, blocked bool) *DashboardEvent {
	return &DashboardEvent{
		ID: id,
		Event: kernel.Event{
			Timestamp: time.Now().UTC(),
			RequestID: id,
			IP:        "192.0.2.1",
			Verdict:   1,
			VerdictS:  "ALLOW",
			Blocked:   blocked,
		},
	}
}

func TestRingBuffer_AddAndAll(t *testing.T) {
	rb := NewRingBuffer(3)

	rb.Add(makeEvent("a", false))
	rb.Add(makeEvent("b", false))
	if rb.Len() != 2 {
		t.Errorf("len = %d, want 2", rb.Len())
	}

	events := rb.All()
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
		t.Errorf("unexpected order: %v", events)
	}
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(3)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		rb.Add(makeEvent(id, false))
	}

	if rb.Len() != 3 {
		t.Fatalf("len = %d, want 3", rb.Len())
	}
	events := rb.All()
	want := []string{"c", "d", "e"}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("events[%d] = %s, want %s", i, events[i].ID, id)
		}
	}
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	for i := 0; i < defaultBufferSize+10; i++ {
		rb.Add(makeEvent(fmt.Sprintf("e%d", i), false))
	}
	if rb.Len() != defaultBufferSize {
		t.Errorf("len = %d, want %d", rb.Len(), defaultBufferSize)
	}
}

func TestStats_RecordAndSnapshot(t *testing.T) {
	s := NewStats()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Record(&DashboardEvent{Event: kernel.Event{
			Timestamp: now, IP: "192.0.2.1", VerdictS: "ALLOW",
		}})
	}
	for i := 0; i < 3; i++ {
		s.Record(&DashboardEvent{Event: kernel.Event{
			Timestamp: now, IP: "203.0.113.9", VerdictS: "DENY",
			ReasonS: "Denied by user-agent component.", Blocked: true,
		}})
	}
	s.Record(&DashboardEvent{Event: kernel.Event{
		Timestamp: now, IP: "203.0.113.10", VerdictS: "DENY",
		ReasonS: "Denied by user-agent component.", Blocked: true,
	}})

	snap := s.Snapshot()
	if snap.TotalRequests != 9 || snap.BlockedCount != 4 || snap.AllowedCount != 5 {
		t.Errorf("totals = %d/%d/%d", snap.TotalRequests, snap.BlockedCount, snap.AllowedCount)
	}
	if snap.VerdictCounts["ALLOW"] != 5 || snap.VerdictCounts["DENY"] != 4 {
		t.Errorf("verdict counts = %v", snap.VerdictCounts)
	}
	if snap.ReasonCounts["Denied by user-agent component."] != 4 {
		t.Errorf("reason counts = %v", snap.ReasonCounts)
	}

	if len(snap.TopDenied) != 2 {
		t.Fatalf("top denied rows = %d, want 2", len(snap.TopDenied))
	}
	if snap.TopDenied[0].IP != "203.0.113.9" || snap.TopDenied[0].Count != 3 {
		t.Errorf("top denied = %+v", snap.TopDenied)
	}

	if len(snap.TimeSeries) != timeSeriesMinutes {
		t.Errorf("time series points = %d, want %d", len(snap.TimeSeries), timeSeriesMinutes)
	}
}

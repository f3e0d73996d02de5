package providers

import (
	"errors"
	"testing"
)

func TestHealthTrackerStartsHealthy(t *testing.T) {
	tr := newHealthTracker("test")
	h := tr.Snapshot()
	if !h.Healthy {
		t.Error("new tracker should start healthy")
	}
	if h.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", h.TotalRequests)
	}
}

func TestHealthTrackerFlipsAfterConsecutiveFailures(t *testing.T) {
	tr := newHealthTracker("test")
	boom := errors.New("boom")

	tr.Record(false, boom)
	tr.Record(false, boom)
	if !tr.Snapshot().Healthy {
		t.Fatal("two failures should not flip health")
	}

	tr.Record(false, boom)
	h := tr.Snapshot()
	if h.Healthy {
		t.Error("three consecutive failures should flip to unhealthy")
	}
	if h.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", h.ConsecutiveFailures)
	}
	if h.LastError != "boom" {
		t.Errorf("LastError = %q", h.LastError)
	}
}

func TestHealthTrackerRecoversOnSuccess(t *testing.T) {
	tr := newHealthTracker("test")
	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		tr.Record(false, boom)
	}

	tr.Record(true, nil)
	h := tr.Snapshot()
	if !h.Healthy {
		t.Error("success should restore health")
	}
	if h.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", h.ConsecutiveFailures)
	}
	if h.LastError != "" {
		t.Errorf("LastError = %q, want empty", h.LastError)
	}
	if h.TotalRequests != 6 || h.FailedRequests != 5 {
		t.Errorf("counts = %d/%d, want 6/5", h.TotalRequests, h.FailedRequests)
	}
	if h.LastSuccess.IsZero() {
		t.Error("LastSuccess should be set")
	}
}

func TestHealthTrackerFailuresInterleaved(t *testing.T) {
	tr := newHealthTracker("test")
	boom := errors.New("boom")

	tr.Record(false, boom)
	tr.Record(false, boom)
	tr.Record(true, nil)
	tr.Record(false, boom)
	tr.Record(false, boom)

	if !tr.Snapshot().Healthy {
		t.Error("interleaved success should prevent the flip")
	}
}

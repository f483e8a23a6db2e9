package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestMetrics_IncAddGet(t *testing.T) {
	m := New()
	m.Inc(RelayDelivered)
	m.Inc(RelayDelivered)
	m.Add(SessionsReaped, 3)

	if got := m.Get(RelayDelivered); got != 2 {
		t.Fatalf("Get(%s) = %d, want 2", RelayDelivered, got)
	}
	if got := m.Get(SessionsReaped); got != 3 {
		t.Fatalf("Get(%s) = %d, want 3", SessionsReaped, got)
	}
	if got := m.Get("never_touched"); got != 0 {
		t.Fatalf("Get(unknown) = %d, want 0", got)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(RelayDropped)
	m.Add(RelayDropped, 5)
	if got := m.Get(RelayDropped); got != 0 {
		t.Fatalf("nil Get = %d, want 0", got)
	}
	if snap := m.Snapshot(); snap != nil {
		t.Fatalf("nil Snapshot = %v, want nil", snap)
	}
}

func TestMetrics_ConcurrentCounting(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(FramesDispatched)
			}
		}()
	}
	wg.Wait()
	if got := m.Get(FramesDispatched); got != 8000 {
		t.Fatalf("Get = %d, want 8000", got)
	}
}

func TestPrometheusHandler_Exposition(t *testing.T) {
	m := New()
	m.Inc(RelayDelivered)
	m.Add(RelayDropped, 2)

	rec := httptest.NewRecorder()
	PrometheusHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE streaming_relay_events_total counter",
		`streaming_relay_events_total{event="relay_delivered"} 1`,
		`streaming_relay_events_total{event="relay_dropped_target_unreachable"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

package metrics

import "sync"

// Counter names. Exposed via the Prometheus handler as events.
const (
	FrameMalformed    = "frame_malformed"
	FrameUnknownKind  = "frame_unknown_kind"
	FramesDispatched  = "frames_dispatched"
	RelayDelivered    = "relay_delivered"
	RelayDropped      = "relay_dropped_target_unreachable"
	SendDropped       = "send_dropped"
	RateLimited       = "rate_limited"
	LivenessEvictions = "liveness_evictions"
	SessionsReaped    = "sessions_reaped"
)

// Metrics is a minimal, concurrency-safe counter registry. It keeps the
// relay's drop/eviction accounting testable without a metrics backend.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) { m.Add(name, 1) }

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

package signaling

import (
	"testing"
	"time"

	"github.com/paxio/streaming-relay/internal/metrics"
)

func waitForFrame(t *testing.T, frames <-chan map[string]any, wantType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				t.Fatalf("stream closed before a %q frame arrived", wantType)
			}
			if frame["type"] == wantType {
				return frame
			}
		case <-deadline:
			t.Fatalf("timeout waiting for a %q frame", wantType)
		}
	}
}

func TestLiveness_SilentClientEvicted(t *testing.T) {
	srv, ts := newTestServer(t, Config{
		ProbeInterval: 50 * time.Millisecond,
		ProbeTimeout:  200 * time.Millisecond,
	})
	srv.Start()

	observer := dialWS(t, ts)
	register(t, observer, "observer")

	// Pump the observer in the background so it keeps answering probes and
	// we can watch for presence changes.
	observed := make(chan map[string]any, 16)
	go func() {
		defer close(observed)
		_ = observer.SetReadDeadline(time.Time{})
		for {
			var frame map[string]any
			if err := observer.ReadJSON(&frame); err != nil {
				return
			}
			observed <- frame
		}
	}()

	silent := dialWS(t, ts)
	register(t, silent, "silent")
	waitForFrame(t, observed, "presence-online")

	// Swallow pings without answering so the transport goes stale.
	pingSeen := make(chan struct{}, 1)
	silent.SetPingHandler(func(string) error {
		select {
		case pingSeen <- struct{}{}:
		default:
		}
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_ = silent.SetReadDeadline(time.Time{})
		for {
			if _, _, err := silent.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-pingSeen:
	case err := <-errCh:
		t.Fatalf("connection closed before any probe: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server probe")
	}

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server to evict the silent client")
	}

	offline := waitForFrame(t, observed, "presence-offline")
	if offline["clientId"] != "silent" {
		t.Fatalf("presence-offline = %v", offline)
	}
	if got := srv.metrics.Get(metrics.LivenessEvictions); got == 0 {
		t.Fatalf("eviction counter = 0, want > 0")
	}
}

func TestLiveness_RespondingClientStaysConnected(t *testing.T) {
	srv, ts := newTestServer(t, Config{
		ProbeInterval: 50 * time.Millisecond,
		ProbeTimeout:  200 * time.Millisecond,
	})
	srv.Start()

	c := dialWS(t, ts)
	register(t, c, "alice")

	// The default client ping handler answers with a pong, which refreshes
	// the server's liveness clock. Keep the read loop running so control
	// frames are processed.
	errCh := make(chan error, 1)
	go func() {
		_ = c.SetReadDeadline(time.Time{})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		t.Fatalf("responsive client was disconnected: %v", err)
	case <-time.After(600 * time.Millisecond):
	}
	if got := srv.metrics.Get(metrics.LivenessEvictions); got != 0 {
		t.Fatalf("eviction counter = %d, want 0", got)
	}
}

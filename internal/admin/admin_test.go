package admin

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/paxio/streaming-relay/internal/relay"
)

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Send(v any) bool { return true }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestHandler(t *testing.T) (*relay.Core, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := relay.NewCore(logger, nil, nil)
	ts := httptest.NewServer(New(core, logger, "/ws"))
	t.Cleanup(ts.Close)
	return core, ts
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func doJSON(t *testing.T, method, url string, v any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	_, ts := newTestHandler(t)

	var body map[string]any
	resp := getJSON(t, ts.URL+"/api/health", &body)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" || body["wsPath"] != "/ws" {
		t.Fatalf("health = %v", body)
	}
	if _, ok := body["timestamp"].(float64); !ok {
		t.Fatalf("timestamp missing: %v", body)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	_, ts := newTestHandler(t)

	resp := getJSON(t, ts.URL+"/api/health", nil)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q, want *", got)
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/sessions", nil)
	preflight, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer preflight.Body.Close()
	if preflight.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", preflight.StatusCode)
	}
	if got := preflight.Header.Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatalf("preflight missing Allow-Methods")
	}
}

func TestStats(t *testing.T) {
	core, ts := newTestHandler(t)
	for _, id := range []string{"alice", "bob"} {
		if err := core.Register(id, &fakeConn{}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	core.Unregister("bob")
	if _, err := core.Join("lobby", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	var body map[string]map[string]any
	resp := getJSON(t, ts.URL+"/api/stats", &body)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["users"]["total"] != float64(2) || body["users"]["online"] != float64(1) {
		t.Fatalf("users = %v", body["users"])
	}
	if body["rooms"]["total"] != float64(1) || body["rooms"]["totalParticipants"] != float64(1) {
		t.Fatalf("rooms = %v", body["rooms"])
	}
	if _, ok := body["server"]["uptime"].(float64); !ok {
		t.Fatalf("server = %v", body["server"])
	}
}

func TestSessions_ListGetDelete(t *testing.T) {
	core, ts := newTestHandler(t)
	conn := &fakeConn{}
	if err := core.Register("alice", conn); err != nil {
		t.Fatalf("register: %v", err)
	}

	var list []map[string]any
	getJSON(t, ts.URL+"/api/sessions", &list)
	if len(list) != 1 || list[0]["clientId"] != "alice" || list[0]["isOnline"] != true {
		t.Fatalf("sessions = %v", list)
	}

	var one map[string]any
	resp := getJSON(t, ts.URL+"/api/sessions/alice", &one)
	if resp.StatusCode != 200 || one["userName"] != "alice" {
		t.Fatalf("get session = %d %v", resp.StatusCode, one)
	}

	var notFound map[string]any
	resp = getJSON(t, ts.URL+"/api/sessions/ghost", &notFound)
	if resp.StatusCode != 404 || notFound["error"] != "Session not found" {
		t.Fatalf("missing session = %d %v", resp.StatusCode, notFound)
	}

	var deleted map[string]any
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/alice", &deleted)
	if resp.StatusCode != 200 || deleted["message"] != "Session deleted" {
		t.Fatalf("delete = %d %v", resp.StatusCode, deleted)
	}
	if !conn.isClosed() {
		t.Fatalf("deleted session's transport not closed")
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/alice", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestRooms_ListGetDelete(t *testing.T) {
	core, ts := newTestHandler(t)
	for _, id := range []string{"alice", "bob"} {
		if err := core.Register(id, &fakeConn{}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
		if _, err := core.Join("lobby", id); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	var list []map[string]any
	getJSON(t, ts.URL+"/api/rooms", &list)
	if len(list) != 1 || list[0]["roomId"] != "lobby" || list[0]["participantsCount"] != float64(2) {
		t.Fatalf("rooms = %v", list)
	}

	var one map[string]any
	resp := getJSON(t, ts.URL+"/api/rooms/lobby", &one)
	if resp.StatusCode != 200 {
		t.Fatalf("get room status = %d", resp.StatusCode)
	}
	members, ok := one["participants"].([]any)
	if !ok || len(members) != 2 || members[0] != "alice" {
		t.Fatalf("participants = %v", one["participants"])
	}

	var notFound map[string]any
	resp = getJSON(t, ts.URL+"/api/rooms/nowhere", &notFound)
	if resp.StatusCode != 404 || notFound["error"] != "Room not found" {
		t.Fatalf("missing room = %d %v", resp.StatusCode, notFound)
	}

	var deleted map[string]any
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/rooms/lobby", &deleted)
	if resp.StatusCode != 200 || deleted["message"] != "Room deleted" {
		t.Fatalf("delete = %d %v", resp.StatusCode, deleted)
	}

	info, err := core.Lookup("alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.RoomID != "" {
		t.Fatalf("member still has RoomID %q after forced delete", info.RoomID)
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	_, ts := newTestHandler(t)

	var body map[string]any
	resp := getJSON(t, ts.URL+"/api/unknown", &body)
	if resp.StatusCode != 404 || body["error"] != "API endpoint not found" {
		t.Fatalf("unknown route = %d %v", resp.StatusCode, body)
	}
}

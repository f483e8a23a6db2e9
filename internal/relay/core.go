package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/paxio/streaming-relay/internal/metrics"
	"github.com/paxio/streaming-relay/internal/protocol"
)

// Core owns the session directory, the room sets, and the connection
// registry. Every operation takes the one mutex guarding all three, which
// is the serialization point required for consistency under concurrent
// connect/disconnect/message/probe/reap events.
type Core struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	rooms    map[string]map[string]struct{}
	conns    map[string]Conn
}

// NewCore constructs an empty Core. A nil now uses the wall clock; tests
// pass their own.
func NewCore(logger *slog.Logger, m *metrics.Metrics, now func() time.Time) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if now == nil {
		now = time.Now
	}
	return &Core{
		log:      logger,
		metrics:  m,
		now:      now,
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]struct{}),
		conns:    make(map[string]Conn),
	}
}

func (c *Core) Metrics() *metrics.Metrics { return c.metrics }

// Register creates the session for id, or reactivates it if it exists and
// is Offline, and binds conn as its transport. All other Online sessions
// are notified of the presence change.
func (c *Core) Register(id string, conn Conn) error {
	if id == "" {
		return ErrInvalidIdentity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s != nil && s.online {
		return ErrNameTaken
	}

	now := c.now()
	if s == nil {
		s = &session{id: id, joinedAt: now}
		c.sessions[id] = s
		c.log.Debug("session created", "client_id", id)
	}
	s.online = true
	s.lastSeen = now
	c.conns[id] = conn

	c.broadcastLocked(protocol.Presence{
		Type:     protocol.TypePresenceOnline,
		ClientID: id,
		UserName: id,
	}, id)

	c.log.Info("session online", "client_id", id)
	return nil
}

// Unregister flips the session Offline, unbinds its transport, and leaves
// its current room. It is idempotent; unknown or already-Offline ids are a
// no-op. The transport itself is not closed here; the caller owns it.
func (c *Core) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s == nil || !s.online {
		return
	}

	s.online = false
	s.lastSeen = c.now()
	delete(c.conns, id)

	if s.roomID != "" {
		c.leaveRoomLocked(s.roomID, id, true)
	}

	c.broadcastLocked(protocol.Presence{
		Type:     protocol.TypePresenceOffline,
		ClientID: id,
		UserName: id,
	}, id)

	c.log.Info("session offline", "client_id", id)
}

// Touch refreshes lastSeen for an Online session. It reports whether the
// id names an Online session.
func (c *Core) Touch(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s == nil || !s.online {
		return false
	}
	s.lastSeen = c.now()
	return true
}

// Lookup returns the session record for id.
func (c *Core) Lookup(id string) (SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s == nil {
		return SessionInfo{}, ErrNotFound
	}
	return s.info(), nil
}

// LookupByDisplayName resolves a display name to its session. Identity and
// display name are the same value in this directory, so this is Lookup
// under the protocol's other lookup path.
func (c *Core) LookupByDisplayName(name string) (SessionInfo, error) {
	return c.Lookup(name)
}

// SendTo delivers v to the session named by id if it is Online. Unknown or
// Offline targets drop the frame; that is the relay's fire-and-forget
// contract, not an error.
func (c *Core) SendTo(id string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s == nil || !s.online {
		return false
	}
	conn := c.conns[id]
	if conn == nil {
		return false
	}
	return conn.Send(v)
}

func (c *Core) broadcastLocked(v any, except string) {
	for id, conn := range c.conns {
		if id == except {
			continue
		}
		conn.Send(v)
	}
}

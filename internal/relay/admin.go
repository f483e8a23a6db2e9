package relay

import (
	"sort"
	"time"

	"github.com/paxio/streaming-relay/internal/metrics"
	"github.com/paxio/streaming-relay/internal/protocol"
)

// Stats returns the aggregate counts for the admin stats endpoint.
func (c *Core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var online, participants int
	for _, s := range c.sessions {
		if s.online {
			online++
		}
	}
	for _, room := range c.rooms {
		participants += len(room)
	}
	return Stats{
		SessionsTotal:     len(c.sessions),
		SessionsOnline:    online,
		RoomsTotal:        len(c.rooms),
		RoomsParticipants: participants,
	}
}

// Sessions lists every session in the directory, Online and Offline.
func (c *Core) Sessions() []SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Rooms lists every live room with its membership.
func (c *Core) Rooms() []RoomInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]RoomInfo, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, c.roomInfoLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Room returns one room's membership view.
func (c *Core) Room(roomID string) (RoomInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rooms[roomID]; !ok {
		return RoomInfo{}, ErrNotFound
	}
	return c.roomInfoLocked(roomID), nil
}

func (c *Core) roomInfoLocked(roomID string) RoomInfo {
	room := c.rooms[roomID]
	members := make([]string, 0, len(room))
	for id := range room {
		members = append(members, id)
	}
	sort.Strings(members)
	return RoomInfo{
		RoomID:            roomID,
		ParticipantsCount: len(members),
		Participants:      members,
	}
}

// DeleteSession removes the session permanently. An Online session is
// unregistered first (room departure, presence-offline broadcast) and its
// transport is closed, so the directory invariants hold afterwards.
func (c *Core) DeleteSession(id string) error {
	c.mu.Lock()

	s := c.sessions[id]
	if s == nil {
		c.mu.Unlock()
		return ErrNotFound
	}

	conn := c.conns[id]
	if s.online {
		s.online = false
		delete(c.conns, id)
		if s.roomID != "" {
			c.leaveRoomLocked(s.roomID, id, true)
		}
		c.broadcastLocked(protocol.Presence{
			Type:     protocol.TypePresenceOffline,
			ClientID: id,
			UserName: id,
		}, id)
	} else if s.roomID != "" {
		c.leaveRoomLocked(s.roomID, id, true)
	}
	delete(c.sessions, id)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.log.Info("session deleted", "client_id", id)
	return nil
}

// DeleteRoom removes the room and clears every member's room reference.
// Members stay registered; no departure notices are emitted.
func (c *Core) DeleteRoom(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.rooms[roomID]
	if room == nil {
		return ErrNotFound
	}
	for member := range room {
		if s := c.sessions[member]; s != nil && s.roomID == roomID {
			s.roomID = ""
		}
	}
	delete(c.rooms, roomID)
	c.log.Info("room deleted", "room_id", roomID, "forced", true)
	return nil
}

// Reap permanently deletes Offline sessions whose lastSeen is older than
// ttl. Any lingering room membership is cleared too; the ordinary Offline
// transition should already have done so.
func (c *Core) Reap(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, s := range c.sessions {
		if s.online || now.Sub(s.lastSeen) <= ttl {
			continue
		}
		if s.roomID != "" {
			c.leaveRoomLocked(s.roomID, id, true)
		}
		delete(c.conns, id)
		delete(c.sessions, id)
		removed++
	}
	if removed > 0 {
		c.metrics.Add(metrics.SessionsReaped, uint64(removed))
		c.log.Info("reaped inactive sessions", "removed", removed)
	}
	return removed
}

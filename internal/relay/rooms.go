package relay

import (
	"sort"

	"github.com/paxio/streaming-relay/internal/protocol"
)

// Join adds the session to roomID, creating the room lazily and leaving
// any other room first so a session is only ever in one room. The other
// members are notified; the returned roster includes the joiner.
func (c *Core) Join(roomID, id string) ([]protocol.Participant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s == nil {
		return nil, ErrNotFound
	}

	if s.roomID != "" && s.roomID != roomID {
		c.leaveRoomLocked(s.roomID, id, true)
	}

	room := c.rooms[roomID]
	if room == nil {
		room = make(map[string]struct{})
		c.rooms[roomID] = room
		c.log.Info("room created", "room_id", roomID)
	}
	room[id] = struct{}{}
	s.roomID = roomID

	roster := c.participantsLocked(roomID)
	notice := protocol.PeerJoined{
		Type:              protocol.TypePeerJoined,
		RoomID:            roomID,
		ClientID:          id,
		UserName:          id,
		Participants:      roster,
		ParticipantsCount: len(roster),
	}
	for member := range room {
		if member == id {
			continue
		}
		if conn := c.conns[member]; conn != nil {
			conn.Send(notice)
		}
	}

	c.log.Info("room joined", "room_id", roomID, "client_id", id, "participants", len(roster))
	return roster, nil
}

// Leave removes the session from its current room, if any. It reports
// whether a departure happened; a session with no room is a silent no-op.
func (c *Core) Leave(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessions[id]
	if s == nil || s.roomID == "" {
		return false
	}
	c.leaveRoomLocked(s.roomID, id, true)
	return true
}

// Participants returns the roster for roomID, empty if the room is absent.
func (c *Core) Participants(roomID string) []protocol.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantsLocked(roomID)
}

// leaveRoomLocked removes id from roomID, clears the session's room
// reference, and deletes the room when it empties. When notify is set and
// members remain, they receive a peer-left notice with the updated count.
func (c *Core) leaveRoomLocked(roomID, id string, notify bool) {
	room := c.rooms[roomID]
	if room == nil {
		return
	}
	if _, member := room[id]; !member {
		return
	}

	delete(room, id)
	if s := c.sessions[id]; s != nil && s.roomID == roomID {
		s.roomID = ""
	}

	if len(room) == 0 {
		delete(c.rooms, roomID)
		c.log.Info("room deleted", "room_id", roomID)
		return
	}

	c.log.Info("room left", "room_id", roomID, "client_id", id, "remaining", len(room))
	if !notify {
		return
	}
	notice := protocol.PeerLeft{
		Type:              protocol.TypePeerLeft,
		RoomID:            roomID,
		ClientID:          id,
		UserName:          id,
		ParticipantsCount: len(room),
	}
	for member := range room {
		if conn := c.conns[member]; conn != nil {
			conn.Send(notice)
		}
	}
}

func (c *Core) participantsLocked(roomID string) []protocol.Participant {
	room := c.rooms[roomID]
	roster := make([]protocol.Participant, 0, len(room))
	for member := range room {
		s := c.sessions[member]
		if s == nil {
			continue
		}
		roster = append(roster, protocol.Participant{
			ClientID: s.id,
			UserName: s.id,
			IsOnline: s.online,
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ClientID < roster[j].ClientID })
	return roster
}

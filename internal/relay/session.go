package relay

import "time"

// Conn is the live transport bound to an Online session. Send must be
// non-blocking best-effort: a slow or dead transport drops the frame and
// reports false, it never stalls the caller. Close force-terminates the
// underlying transport.
type Conn interface {
	Send(v any) bool
	Close() error
}

// session is the directory's record of a registered identity. The identity
// doubles as the display name; both lookup paths resolve the same value.
type session struct {
	id       string
	online   bool
	roomID   string
	joinedAt time.Time
	lastSeen time.Time
}

// SessionInfo is the read-only view handed to the admin interface.
type SessionInfo struct {
	ClientID string    `json:"clientId"`
	UserName string    `json:"userName"`
	IsOnline bool      `json:"isOnline"`
	RoomID   string    `json:"roomId,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
	LastSeen time.Time `json:"lastSeen"`
}

// RoomInfo is the read-only room view handed to the admin interface.
type RoomInfo struct {
	RoomID            string   `json:"roomId"`
	ParticipantsCount int      `json:"participantsCount"`
	Participants      []string `json:"participants"`
}

// Stats are the aggregate counts served by the admin stats endpoint.
type Stats struct {
	SessionsTotal     int `json:"sessionsTotal"`
	SessionsOnline    int `json:"sessionsOnline"`
	RoomsTotal        int `json:"roomsTotal"`
	RoomsParticipants int `json:"roomsParticipants"`
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ClientID: s.id,
		UserName: s.id,
		IsOnline: s.online,
		RoomID:   s.roomID,
		JoinedAt: s.joinedAt,
		LastSeen: s.lastSeen,
	}
}

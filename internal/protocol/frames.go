package protocol

import (
	"encoding/json"
	"errors"
)

// Kind discriminates inbound frames.
type Kind string

const (
	KindRegister       Kind = "register"
	KindPing           Kind = "ping"
	KindJoin           Kind = "join"
	KindLeave          Kind = "leave"
	KindOffer          Kind = "offer"
	KindAnswer         Kind = "answer"
	KindCandidate      Kind = "candidate"
	KindICEComplete    Kind = "ice-complete"
	KindCallRejected   Kind = "call-rejected"
	KindCallEnded      Kind = "call-ended"
	KindMediaState     Kind = "media-state"
	KindInvite         Kind = "invite"
	KindInviteResponse Kind = "invite-response"
)

// Outbound frame types.
const (
	TypeRegistered      = "registered"
	TypePong            = "pong"
	TypeJoined          = "joined"
	TypePeerJoined      = "peer-joined"
	TypePeerLeft        = "peer-left"
	TypePresenceOnline  = "presence-online"
	TypePresenceOffline = "presence-offline"
	TypeInvite          = "invite"
	TypeInviteResponse  = "invite-response"
	TypeError           = "error"
)

// Error texts sent in error frames. These are part of the protocol; clients
// match on them.
const (
	ErrTextNotRegistered        = "User not registered"
	ErrTextNameRequired         = "Username is required"
	ErrTextNameTaken            = "Username is already taken"
	ErrTextRoomRequired         = "roomId required"
	ErrTextRelayToRequired      = "to field required for WebRTC messages"
	ErrTextMediaToRequired      = "to field required for media-state messages"
	ErrTextInviteFields         = "invite requires targetUser and fromUser"
	ErrTextInviteResponseFields = "invite-response requires to and accepted fields"
)

// ErrMalformed is returned by Parse for anything that is not a JSON object
// with a string "type" field. Malformed frames are dropped without a reply.
var ErrMalformed = errors.New("malformed frame")

// IsRelay reports whether frames of this kind are forwarded verbatim to the
// session named by their "to" field.
func (k Kind) IsRelay() bool {
	switch k {
	case KindOffer, KindAnswer, KindCandidate, KindICEComplete,
		KindCallRejected, KindCallEnded, KindMediaState:
		return true
	}
	return false
}

// Inbound is the decoded envelope of a client frame. Only the routing and
// validation fields are modeled; relay kinds keep the raw payload so it can
// be forwarded without loss.
type Inbound struct {
	Kind       Kind            `json:"type"`
	UserName   string          `json:"userName"`
	RoomID     string          `json:"roomId"`
	To         string          `json:"to"`
	T          json.RawMessage `json:"t"`
	TargetUser string          `json:"targetUser"`
	FromUser   string          `json:"fromUser"`
	Accepted   json.RawMessage `json:"accepted"`
	Message    string          `json:"message"`

	raw []byte
}

// Parse decodes a single inbound frame. Unknown fields are permitted; relay
// payloads routinely carry fields the server does not interpret.
func Parse(data []byte) (*Inbound, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, ErrMalformed
	}

	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, ErrMalformed
	}
	if msg.Kind == "" {
		return nil, ErrMalformed
	}
	msg.raw = data
	return &msg, nil
}

// AcceptedBool reports the accepted field as a boolean. ok is false when
// the field is absent or not a JSON boolean; that is a validation error,
// not a malformed frame.
func (m *Inbound) AcceptedBool() (accepted, ok bool) {
	switch string(m.Accepted) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// RelayPayload returns the full original frame with the sender identity
// injected, ready for unicast forwarding.
func (m *Inbound) RelayPayload(from, fromUserName string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(m.raw, &payload); err != nil {
		return nil, ErrMalformed
	}
	payload["from"] = from
	payload["fromUserName"] = fromUserName
	return payload, nil
}

// Participant describes a room member in joined/peer-joined rosters.
type Participant struct {
	ClientID string `json:"clientId"`
	UserName string `json:"userName"`
	IsOnline bool   `json:"isOnline"`
}

type Registered struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	UserName string `json:"userName"`
}

type Pong struct {
	Type string          `json:"type"`
	T    json.RawMessage `json:"t"`
}

type Joined struct {
	Type              string        `json:"type"`
	RoomID            string        `json:"roomId"`
	ClientID          string        `json:"clientId"`
	Participants      []Participant `json:"participants"`
	ParticipantsCount int           `json:"participantsCount"`
}

type PeerJoined struct {
	Type              string        `json:"type"`
	RoomID            string        `json:"roomId"`
	ClientID          string        `json:"clientId"`
	UserName          string        `json:"userName"`
	Participants      []Participant `json:"participants"`
	ParticipantsCount int           `json:"participantsCount"`
}

type PeerLeft struct {
	Type              string `json:"type"`
	RoomID            string `json:"roomId"`
	ClientID          string `json:"clientId"`
	UserName          string `json:"userName"`
	ParticipantsCount int    `json:"participantsCount"`
}

// Presence announces a session flipping Online or Offline. Type is
// TypePresenceOnline or TypePresenceOffline.
type Presence struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	UserName string `json:"userName"`
}

type Invite struct {
	Type     string `json:"type"`
	FromUser string `json:"fromUser"`
	Message  string `json:"message"`
}

type InviteResponse struct {
	Type         string `json:"type"`
	From         string `json:"from"`
	FromUserName string `json:"fromUserName"`
	Accepted     bool   `json:"accepted"`
	Message      string `json:"message"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Errorf builds an error frame for the given protocol error text.
func Errorf(text string) Error {
	return Error{Type: TypeError, Error: text}
}

package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paxio/streaming-relay/internal/metrics"
	"github.com/paxio/streaming-relay/internal/protocol"
	"github.com/paxio/streaming-relay/internal/relay"
)

// dispatch decodes one inbound frame and routes it. Malformed frames are
// dropped without a reply; every kind but register requires the transport
// to be bound to a session.
func (s *Server) dispatch(p *peer, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		s.metrics.Inc(metrics.FrameMalformed)
		return
	}

	id := p.identity()
	if msg.Kind != protocol.KindRegister && id == "" {
		p.Send(protocol.Errorf(protocol.ErrTextNotRegistered))
		return
	}
	if id != "" {
		s.core.Touch(id)
	}
	s.metrics.Inc(metrics.FramesDispatched)

	switch {
	case msg.Kind == protocol.KindRegister:
		s.handleRegister(p, msg)
	case msg.Kind == protocol.KindPing:
		s.handlePing(p, msg)
	case msg.Kind == protocol.KindJoin:
		s.handleJoin(p, id, msg)
	case msg.Kind == protocol.KindLeave:
		s.core.Leave(id)
	case msg.Kind.IsRelay():
		s.handleRelay(p, id, msg)
	case msg.Kind == protocol.KindInvite:
		s.handleInvite(p, msg)
	case msg.Kind == protocol.KindInviteResponse:
		s.handleInviteResponse(p, id, msg)
	default:
		s.metrics.Inc(metrics.FrameUnknownKind)
		s.log.Info("unknown message type", "type", string(msg.Kind))
	}
}

func (s *Server) handleRegister(p *peer, msg *protocol.Inbound) {
	name := strings.TrimSpace(msg.UserName)
	if name == "" {
		p.Send(protocol.Errorf(protocol.ErrTextNameRequired))
		return
	}

	if prev := p.identity(); prev != "" && prev != name {
		// A live transport re-registering under a new identity releases the
		// old one first so it does not stay Online with no way to reach it.
		s.core.Unregister(prev)
		p.bind("")
	}

	if err := s.core.Register(name, p); err != nil {
		switch {
		case errors.Is(err, relay.ErrInvalidIdentity):
			p.Send(protocol.Errorf(protocol.ErrTextNameRequired))
		case errors.Is(err, relay.ErrNameTaken):
			p.Send(protocol.Errorf(protocol.ErrTextNameTaken))
		default:
			s.log.Error("register failed", "client_id", name, "err", err)
		}
		return
	}

	p.bind(name)
	p.Send(protocol.Registered{
		Type:     protocol.TypeRegistered,
		ClientID: name,
		UserName: name,
	})
}

func (s *Server) handlePing(p *peer, msg *protocol.Inbound) {
	t := msg.T
	if len(t) == 0 || string(t) == "null" {
		t = json.RawMessage(strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	p.Send(protocol.Pong{Type: protocol.TypePong, T: t})
}

func (s *Server) handleJoin(p *peer, id string, msg *protocol.Inbound) {
	if msg.RoomID == "" {
		p.Send(protocol.Errorf(protocol.ErrTextRoomRequired))
		return
	}

	roster, err := s.core.Join(msg.RoomID, id)
	if err != nil {
		// The session vanished between dispatch and join (admin delete or
		// reap); the transport is about to die anyway.
		s.log.Debug("join for unknown session", "client_id", id, "err", err)
		return
	}

	p.Send(protocol.Joined{
		Type:              protocol.TypeJoined,
		RoomID:            msg.RoomID,
		ClientID:          id,
		Participants:      roster,
		ParticipantsCount: len(roster),
	})
}

// handleRelay forwards an opaque signaling payload to the session named by
// "to". A missing field is a validation error; an unreachable target is a
// silent drop.
func (s *Server) handleRelay(p *peer, id string, msg *protocol.Inbound) {
	if msg.To == "" {
		text := protocol.ErrTextRelayToRequired
		if msg.Kind == protocol.KindMediaState {
			text = protocol.ErrTextMediaToRequired
		}
		p.Send(protocol.Errorf(text))
		return
	}

	payload, err := msg.RelayPayload(id, id)
	if err != nil {
		s.metrics.Inc(metrics.FrameMalformed)
		return
	}

	if s.core.SendTo(msg.To, payload) {
		s.metrics.Inc(metrics.RelayDelivered)
	} else {
		s.metrics.Inc(metrics.RelayDropped)
		s.log.Debug("relay dropped", "kind", string(msg.Kind), "to", msg.To)
	}
}

func (s *Server) handleInvite(p *peer, msg *protocol.Inbound) {
	if msg.TargetUser == "" || msg.FromUser == "" {
		p.Send(protocol.Errorf(protocol.ErrTextInviteFields))
		return
	}

	message := msg.Message
	if message == "" {
		message = fmt.Sprintf("User %s invites you to a call", msg.FromUser)
	}

	// Target resolution is by display name, which shares the identity map.
	s.core.SendTo(msg.TargetUser, protocol.Invite{
		Type:     protocol.TypeInvite,
		FromUser: msg.FromUser,
		Message:  message,
	})
}

func (s *Server) handleInviteResponse(p *peer, id string, msg *protocol.Inbound) {
	accepted, ok := msg.AcceptedBool()
	if msg.To == "" || !ok {
		p.Send(protocol.Errorf(protocol.ErrTextInviteResponseFields))
		return
	}

	message := msg.Message
	if message == "" {
		if accepted {
			message = fmt.Sprintf("User %s accepted the invitation", id)
		} else {
			message = fmt.Sprintf("User %s declined the invitation", id)
		}
	}

	s.core.SendTo(msg.To, protocol.InviteResponse{
		Type:         protocol.TypeInviteResponse,
		From:         id,
		FromUserName: id,
		Accepted:     accepted,
		Message:      message,
	})
}

package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paxio/streaming-relay/internal/metrics"
	"github.com/paxio/streaming-relay/internal/ratelimit"
)

const (
	// writeWait bounds a single frame or control write.
	writeWait = 1 * time.Second

	// sendQueueSize is the outbound buffer per connection. A full queue
	// drops the frame; delivery is best-effort by contract.
	sendQueueSize = 64
)

// peer is one live WebSocket transport. It satisfies relay.Conn so the
// core can deliver to it. Reads happen on the handler goroutine, writes on
// writePump; the send channel is the only path to the socket for data
// frames.
type peer struct {
	srv  *Server
	conn *websocket.Conn
	log  *slog.Logger

	send chan []byte
	ping chan struct{}
	done chan struct{}

	// lastSignal is the unix-nano time of the last pong or inbound frame.
	lastSignal atomic.Int64

	mu sync.Mutex
	id string

	doneOnce sync.Once
}

func newPeer(srv *Server, conn *websocket.Conn) *peer {
	p := &peer{
		srv:  srv,
		conn: conn,
		log:  srv.log.With("remote_addr", conn.RemoteAddr().String()),
		send: make(chan []byte, sendQueueSize),
		ping: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	p.touch()
	return p
}

func (p *peer) identity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *peer) bind(id string) {
	p.mu.Lock()
	p.id = id
	p.mu.Unlock()
}

func (p *peer) touch() {
	p.lastSignal.Store(time.Now().UnixNano())
}

func (p *peer) lastSignalTime() time.Time {
	return time.Unix(0, p.lastSignal.Load())
}

// Send implements relay.Conn. It never blocks: frames for a slow or dead
// transport are dropped and counted.
func (p *peer) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error("failed to encode frame", "err", err)
		return false
	}

	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- data:
		return true
	default:
		p.srv.metrics.Inc(metrics.SendDropped)
		p.log.Warn("send queue full, dropping frame")
		return false
	}
}

// Close implements relay.Conn: it force-terminates the transport. The
// read pump observes the closed socket and runs the ordinary disconnect
// path.
func (p *peer) Close() error {
	return p.conn.Close()
}

// shutdown closes the connection with a normal-closure frame, used during
// ordered server teardown.
func (p *peer) shutdown() {
	p.closeWith(websocket.CloseNormalClosure, "Server shutting down")
	_ = p.conn.Close()
}

func (p *peer) closeWith(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// probe requests a ping from the write pump. A pending probe is enough;
// dropping extras is fine.
func (p *peer) probe() {
	select {
	case p.ping <- struct{}{}:
	default:
	}
}

// readPump reads frames until the connection dies, then runs the
// disconnect transition exactly once.
func (p *peer) readPump() {
	defer func() {
		p.srv.removePeer(p)
		if id := p.identity(); id != "" {
			p.srv.core.Unregister(id)
			p.log.Info("client disconnected", "client_id", id)
		} else {
			p.log.Debug("client disconnected before registering")
		}
		p.doneOnce.Do(func() { close(p.done) })
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(p.srv.maxMessageBytes)
	p.conn.SetPongHandler(func(string) error {
		p.touch()
		return nil
	})

	limiter := ratelimit.NewBucket(p.srv.messagesPerSecond, time.Now())

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		p.touch()

		if !limiter.Allow(time.Now()) {
			p.srv.metrics.Inc(metrics.RateLimited)
			p.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		p.srv.dispatch(p, data)
	}
}

// writePump owns all data writes to the socket.
func (p *peer) writePump() {
	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = p.conn.Close()
				return
			}
		case <-p.ping:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Probe failures are logged, not eviction triggers; a dead
				// socket surfaces through the read pump.
				p.log.Debug("probe write failed", "err", err)
			}
		case <-p.done:
			return
		}
	}
}

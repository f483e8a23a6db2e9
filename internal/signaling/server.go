package signaling

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paxio/streaming-relay/internal/metrics"
	"github.com/paxio/streaming-relay/internal/relay"
)

// Config wires together the runtime dependencies of the signaling server.
type Config struct {
	Core    *relay.Core
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// ProbeInterval is the liveness probe period; ProbeTimeout is how long
	// a transport may stay silent (no pong, no frame) before eviction.
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// Inbound hardening.
	MaxMessageBytes   int64
	MessagesPerSecond int
}

// Server accepts relay WebSocket connections and routes their frames into
// the core. It carries its own start/stop lifecycle: Start launches the
// liveness monitor, Close tears down every transport with a normal-closure
// signal and stops the monitor.
type Server struct {
	log     *slog.Logger
	core    *relay.Core
	metrics *metrics.Metrics

	probeInterval     time.Duration
	probeTimeout      time.Duration
	maxMessageBytes   int64
	messagesPerSecond int

	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  map[*peer]struct{}
	closed bool

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		log:               logger,
		core:              cfg.Core,
		metrics:           m,
		probeInterval:     cfg.ProbeInterval,
		probeTimeout:      cfg.ProbeTimeout,
		maxMessageBytes:   cfg.MaxMessageBytes,
		messagesPerSecond: cfg.MessagesPerSecond,
		upgrader: websocket.Upgrader{
			// The browser app may be served from anywhere; identities carry no
			// authority, so origin checks buy nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers: make(map[*peer]struct{}),
		done:  make(chan struct{}),
	}
	if s.probeInterval <= 0 {
		s.probeInterval = 15 * time.Second
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = 45 * time.Second
	}
	if s.maxMessageBytes <= 0 {
		s.maxMessageBytes = 64 * 1024
	}
	if s.messagesPerSecond <= 0 {
		s.messagesPerSecond = 50
	}
	return s
}

// Start launches the liveness monitor loop.
func (s *Server) Start() {
	s.wg.Add(1)
	go s.runMonitor()
}

// ServeHTTP upgrades the connection and pumps it until it closes. The
// handler goroutine doubles as the read pump, so http.Server.Shutdown
// naturally waits for connections to drain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := newPeer(s, conn)
	if !s.addPeer(p) {
		p.shutdown()
		return
	}

	s.log.Debug("client connected", "remote_addr", conn.RemoteAddr().String())
	go p.writePump()
	p.readPump()
}

func (s *Server) addPeer(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.peers[p] = struct{}{}
	return true
}

func (s *Server) removePeer(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

func (s *Server) snapshotPeers() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Server) runMonitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.probeTick()
		}
	}
}

// probeTick evicts transports that have been silent past the timeout and
// probes the rest.
func (s *Server) probeTick() {
	now := time.Now()
	for _, p := range s.snapshotPeers() {
		if now.Sub(p.lastSignalTime()) > s.probeTimeout {
			s.evict(p)
			continue
		}
		p.probe()
	}
}

// evict force-disconnects an unresponsive transport. The Offline
// transition is the same one ordinary disconnect uses, so room departure
// and the presence-offline broadcast happen before the socket dies from
// the client's point of view.
func (s *Server) evict(p *peer) {
	id := p.identity()
	s.metrics.Inc(metrics.LivenessEvictions)
	s.log.Warn("evicting unresponsive client", "client_id", id)
	if id != "" {
		s.core.Unregister(id)
	}
	_ = p.Close()
}

// Close stops the monitor and closes every live transport with a
// normal-closure frame. It blocks until the monitor has stopped; read
// pumps drain through the http server's own shutdown.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })

	s.mu.Lock()
	s.closed = true
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.shutdown()
	}
	s.wg.Wait()
}

package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/path"
)

// Event is one ledger notification as sent to inspector clients.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind string    `json:"kind"`
	Path string    `json:"path"`
	Time time.Time `json:"time"`
}

// Server publishes ledger events over websockets and serves snapshots of
// the derived graph. Its observer methods are called on the runtime's
// thread; HTTP handlers run on their own goroutines and only see copies.
type Server struct {
	buffer   int
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	seq     atomic.Uint64
	dropped atomic.Uint64

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	nodes   []derive.Info
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

var _ ledger.Observer = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithBuffer sets how many events are queued per client before events
// are dropped for it.
func WithBuffer(n int) Option {
	return func(s *Server) {
		s.buffer = n
	}
}

// WithGatherer serves gathered metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates an inspector server. Register it on the runtime's ledger
// to feed it.
func New(opts ...Option) *Server {
	s := &Server{
		buffer:  256,
		clients: make(map[uuid.UUID]*client),
		now:     time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "inspect")
	}
	return s
}

// Handler returns the HTTP surface:
//
//	GET /events   websocket stream of Event JSON
//	GET /nodes    JSON array of derived node snapshots
//	GET /metrics  Prometheus metrics (with WithGatherer)
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/events", s.handleEvents)
	r.Get("/nodes", s.handleNodes)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// OnRead, OnKeyRead, OnWrite and OnDeltaRead publish ledger events to
// connected clients.
func (s *Server) OnRead(p *path.Path)      { s.publish(ledger.KindRead, p) }
func (s *Server) OnKeyRead(p *path.Path)   { s.publish(ledger.KindKeyRead, p) }
func (s *Server) OnWrite(p *path.Path)     { s.publish(ledger.KindWrite, p) }
func (s *Server) OnDeltaRead(p *path.Path) { s.publish(ledger.KindDeltaRead, p) }

// SetNodes replaces the snapshot served on /nodes. Call it from the
// runtime's thread, typically after a flush.
func (s *Server) SetNodes(nodes []derive.Info) {
	s.mu.Lock()
	s.nodes = nodes
	s.mu.Unlock()
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped returns how many events were dropped for slow clients.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
}

func (s *Server) publish(kind string, p *path.Path) {
	s.mu.RLock()
	if len(s.clients) == 0 {
		s.mu.RUnlock()
		return
	}
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(Event{
		Seq:  s.seq.Add(1),
		Kind: kind,
		Path: p.String(),
		Time: s.now(),
	})
	if err != nil {
		s.logger.Error("encode event failed",
			"error", errors.Newf(errors.CategoryInspector, "encode %s event for %s", kind, p).Wrap(err))
		return
	}
	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, s.buffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Debug("inspector client connected", "client", c.id)

	go s.writeLoop(c)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
	s.logger.Debug("inspector client disconnected", "client", c.id)
}

func (s *Server) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		}
	}
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	nodes := s.nodes
	s.mu.RUnlock()
	if nodes == nil {
		nodes = []derive.Info{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(nodes); err != nil {
		s.logger.Debug("encode nodes failed",
			"error", errors.Newf(errors.CategoryInspector, "encode %d nodes", len(nodes)).Wrap(err))
	}
}

// Package feed pushes newly logged packets of the selected retriever to
// websocket clients.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/metrics"
	"firestige.xyz/procsniff/internal/retriever"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Provider returns the retriever to follow, nil when nothing is selected.
type Provider func() *retriever.Retriever

// Server serves the packet feed on cfg.Path and a JSON status on /status.
type Server struct {
	cfg      config.FeedConfig
	current  Provider
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a feed server following current.
func NewServer(cfg config.FeedConfig, current Provider) *Server {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 256
	}

	s := &Server{
		cfg:     cfg,
		current: current,
		mux:     http.NewServeMux(),
		done:    make(chan struct{}),
	}
	s.mux.HandleFunc(cfg.Path, s.handleFeed)
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("feed server listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	logrus.WithFields(logrus.Fields{"addr": ln.Addr().String(), "path": s.cfg.Path}).Info("starting feed server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("feed server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Listen
}

// Stop disconnects all clients and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("feed server shutdown failed: %w", err)
	}
	logrus.Info("feed server stopped")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	r := s.current()
	if r == nil {
		json.NewEncoder(w).Encode(map[string]any{"selected": false})
		return
	}
	json.NewEncoder(w).Encode(r.Status())
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	metrics.FeedClients.Inc()
	defer metrics.FeedClients.Dec()

	logger := logrus.WithField("remote", r.RemoteAddr)
	logger.Debug("feed client connected")
	defer logger.Debug("feed client disconnected")

	c := newClient(conn)
	go c.writeLoop()
	go c.readLoop()
	defer close(c.send)

	s.pump(c)
}

// cursor is a client's position in the followed retriever's log.
type cursor struct {
	id       string
	seq      uint64
	reported bool
}

// pump polls the selected retriever until the client leaves or the server stops.
func (s *Server) pump(c *client) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var cur cursor
	for {
		s.poll(c, &cur)

		select {
		case <-ticker.C:
		case <-c.gone:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) poll(c *client, cur *cursor) {
	r := s.current()
	if r == nil {
		if cur.id != "" {
			c.enqueue(Message{Type: TypeReset})
			*cur = cursor{}
			c.evicted = 0
		}
		return
	}

	// Status is read before the snapshot so that a stopped retriever's
	// final packets are sent ahead of its status.
	status := r.Status()
	if r.ID() != cur.id {
		*cur = cursor{id: r.ID()}
		c.enqueue(Message{Type: TypeReset, Status: &status})
		c.evicted = 0
	}

	snap := r.Packets().Snapshot()
	if head := snap.Seq(); head > cur.seq {
		batch := make([]PacketView, 0, min(head-cur.seq, uint64(s.cfg.MaxBatch)))
		for seq, pkt := range snap.Since(cur.seq) {
			if len(batch) == s.cfg.MaxBatch {
				break
			}
			batch = append(batch, NewView(seq, pkt))
		}
		slices.Reverse(batch)

		msg := Message{Type: TypePackets, Packets: batch, Skipped: c.evicted}
		if oldest := batch[0].Seq; oldest > cur.seq+1 {
			msg.Skipped += oldest - cur.seq - 1
		}
		if c.enqueue(msg) {
			cur.seq = head
			c.evicted = 0
		}
	}

	if status.State == retriever.StateStopped && !cur.reported && cur.seq >= snap.Seq() {
		cur.reported = true
		c.enqueue(Message{Type: TypeStatus, Status: &status})
	}
}

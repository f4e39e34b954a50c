// Package wsserver is the WebSocket transport of the signaling server.
//
// Each accepted connection runs two goroutines: a read loop that decodes
// frames and hands them to the relay, and a write loop that drains the
// connection's outbox and sends keepalive pings. A read or write failure ends
// both and triggers cleanup: the connection leaves its room (notifying the
// peer) and is removed from the registry.
package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/signaling"
	"securemeet/relaygate/pkg/signaling/registry"
	"securemeet/relaygate/pkg/signaling/relay"
	"securemeet/relaygate/pkg/signaling/rooms"
	"securemeet/relaygate/pkg/telemetry/metrics"
)

// Server accepts signaling connections. It implements http.Handler for the
// upgrade endpoint.
type Server struct {
	cfg      *config.SignalingConfig
	registry *registry.Registry
	rooms    *rooms.Manager
	relay    *relay.Relay
	metrics  *metrics.Collector
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	active   map[string]*relay.Outbox
	closing  bool
	sessions sync.WaitGroup
}

// New creates a signaling server with its own registry and room manager.
// collector may be nil.
func New(cfg *config.SignalingConfig, collector *metrics.Collector) *Server {
	reg := registry.New()
	mgr := rooms.NewManager(reg, collector)

	s := &Server{
		cfg:      cfg,
		registry: reg,
		rooms:    mgr,
		relay:    relay.New(reg, mgr, collector),
		metrics:  collector,
		logger:   slog.Default().With("component", "signaling.wsserver"),
		active:   make(map[string]*relay.Outbox),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Registry returns the connection registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Rooms returns the room manager.
func (s *Server) Rooms() *rooms.Manager {
	return s.rooms
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.sessions.Add(1)
	s.mu.Unlock()
	defer s.sessions.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		s.logger.Debug("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	s.serve(ws, r.RemoteAddr)
}

func (s *Server) serve(ws *websocket.Conn, remoteAddr string) {
	ctx := context.Background()

	outbox := relay.NewOutbox(s.cfg.OutboxSize, s.cfg.OutboxTimeout, s.metrics)
	id := s.registry.Register(outbox)
	logger := s.logger.With("conn_id", id)

	s.mu.Lock()
	s.active[id] = outbox
	if s.closing {
		outbox.Close()
	}
	s.mu.Unlock()
	s.metrics.ConnectionOpened()

	logger.Info("signaling connection opened", "remote_addr", remoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ws, outbox, logger)
	}()

	if err := outbox.Send(ctx, signaling.MustMessage(signaling.EventConnected, signaling.Connected{ID: id})); err == nil {
		s.readLoop(ctx, id, ws, outbox, logger)
	}

	s.relay.Disconnect(ctx, id)
	outbox.Close()
	<-writerDone

	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
	s.metrics.ConnectionClosed()

	logger.Info("signaling connection closed")
}

func (s *Server) readLoop(ctx context.Context, id string, ws *websocket.Conn, outbox *relay.Outbox, logger *slog.Logger) {
	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("signaling read failed", "error", err)
			}
			return
		}

		var msg signaling.Message
		if kind != websocket.TextMessage {
			err = fmt.Errorf("%w: binary frames are not supported", signaling.ErrBadRequest)
		} else if jerr := json.Unmarshal(data, &msg); jerr != nil {
			err = fmt.Errorf("%w: %v", signaling.ErrBadRequest, jerr)
		} else {
			err = s.relay.Handle(ctx, id, msg)
		}

		if err == nil {
			continue
		}

		logger.Debug("signaling message rejected", "event", msg.Type, "error", err)
		if sendErr := outbox.Send(ctx, signaling.ErrorMessage(err)); sendErr != nil {
			return
		}
	}
}

func (s *Server) writeLoop(ws *websocket.Conn, outbox *relay.Outbox, logger *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg := <-outbox.Messages():
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := ws.WriteJSON(msg); err != nil {
				logger.Debug("signaling write failed", "error", err)
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-outbox.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait))
			return
		}
	}
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown stops accepting upgrades, closes every open connection and waits
// for their cleanup or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for _, outbox := range s.active {
		outbox.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

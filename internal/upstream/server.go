// Package upstream provides a scriptable HTTP and WebSocket backend for
// proxy tests.
package upstream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subprotocol is the WebSocket subprotocol the server accepts.
const Subprotocol = "relaygate.test.v1"

// Response scripts the reply for one path.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string

	// Delay holds the response back. The handler returns early if the
	// proxy abandons the request.
	Delay time.Duration
}

// Request is a request the server received.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Host     string
	Header   http.Header
	Body     []byte
}

// Server is a mock upstream. Unscripted HTTP paths answer 200 with
// "ok <path>". WebSocket connections echo every message back.
type Server struct {
	server    *httptest.Server
	upgrader  websocket.Upgrader
	mu        sync.Mutex
	responses map[string]Response
	requests  []Request
	wsClosed  chan struct{}
}

// New starts a mock upstream.
func New() *Server {
	s := &Server{
		responses: make(map[string]Response),
		wsClosed:  make(chan struct{}, 16),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// SetResponse scripts the reply for path.
func (s *Server) SetResponse(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = resp
}

// Requests returns the HTTP requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent HTTP request.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// WebSocketClosed is signalled each time an echo connection ends.
func (s *Server) WebSocketClosed() <-chan struct{} {
	return s.wsClosed
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.echo(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Host:     r.Host,
		Header:   r.Header.Clone(),
		Body:     body,
	})
	resp, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		resp = Response{StatusCode: http.StatusOK, Body: []byte("ok " + r.URL.Path)}
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func (s *Server) echo(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() {
		conn.Close()
		select {
		case s.wsClosed <- struct{}{}:
		default:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

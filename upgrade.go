package httpserver

import (
	"bufio"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler receives the established connection once the
// protocol-upgrade hand-off (spec.md §4.5) completes. It is the
// "new_websocket_connection" signal of spec.md §9, re-modeled per that
// section's own suggestion as a stored function-pointer slot rather than a
// subscription list.
type WebSocketHandler func(conn *websocket.Conn, req *Request)

// upgrader is the concrete WebSocket collaborator spec.md §1 lists as
// external ("the WebSocket server (external)"); gorilla/websocket's
// Upgrader is the pack's WebSocket library (SPEC_FULL.md §3).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hijackAdapter is a minimal http.ResponseWriter + http.Hijacker so
// gorilla/websocket's Upgrader — written against net/http's Hijack
// protocol — can drive our own hand-off without a real net/http.Server
// underneath it. Grounded on badu-http's conn.go hijackLocked, which
// builds the same bufio.ReadWriter-over-a-raw-conn shape for its own
// Hijacker implementation.
type hijackAdapter struct {
	conn   net.Conn
	br     *bufio.Reader
	header http.Header
}

func (a *hijackAdapter) Header() http.Header { return a.header }

// Write is never meaningfully called: Upgrader.Upgrade only ever writes
// the handshake response through the bufio.Writer returned by Hijack.
func (a *hijackAdapter) Write(b []byte) (int, error) { return len(b), nil }

func (a *hijackAdapter) WriteHeader(int) {}

func (a *hijackAdapter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	bw := bufio.NewWriter(a.conn)
	return a.conn, bufio.NewReadWriter(a.br, bw), nil
}

// tryUpgrade implements spec.md §4.5 step 1: if the application has
// registered interest and the router accepts the request, the socket is
// detached. readHeaders already Discarded the handshake bytes from s.br,
// so the reader handed to the Upgrader via hijackAdapter is empty — exactly
// what gorilla/websocket's Upgrade requires (it rejects the handshake with
// "client sent data before handshake is complete" if anything is still
// buffered). The Upgrader never re-reads the request line or headers off
// that reader; it works entirely from stdReq, which carries the same
// parsed header data spec.md's rollback was meant to preserve. Returns
// false if the hand-off should be refused (no subscriber, or the router
// rejects it).
func (s *Stream) tryUpgrade() bool {
	handler := s.server.webSocketHandler()
	if handler == nil {
		return false
	}
	if !s.server.router.accepts(s.req) {
		return false
	}

	stdReq := s.buildStdRequest()
	adapter := &hijackAdapter{conn: s.conn, br: s.br, header: make(http.Header)}
	wsConn, err := upgrader.Upgrade(adapter, stdReq, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote", s.req.RemoteAddr))
		return false
	}

	s.detached = true
	go handler(wsConn, s.req)
	return true
}

// buildStdRequest reconstructs a stdlib *http.Request from the already
// parsed Request: gorilla/websocket's Upgrader is written against
// net/http's request type, not this package's own.
func (s *Stream) buildStdRequest() *http.Request {
	hdr := make(http.Header, s.req.Header.Len())
	s.req.Header.Range(func(name, value string) {
		hdr.Add(name, value)
	})
	return &http.Request{
		Method:     s.req.MethodToken,
		URL:        s.req.URL,
		Proto:      s.req.Proto,
		ProtoMajor: s.req.ProtoMajor,
		ProtoMinor: s.req.ProtoMinor,
		Header:     hdr,
		Host:       s.req.URL.Host,
		RemoteAddr: s.req.RemoteAddr,
	}
}

package httpserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/badu/httpserver/header"
	"github.com/badu/httpserver/wire"
)

// errHeaderTooLarge mirrors badu-http's types_server.go errTooLarge: the
// header section exceeded the configured limit before headers-complete.
var errHeaderTooLarge = errors.New("httpserver: request header section too large")

// errorHeaders is the fixed tail written alongside a synthetic error status
// line, the same literal badu-http's types_strings.go errorHeaders uses.
const errorHeaders = "\r\nContent-Type: text/plain; charset=utf-8\r\nConnection: close\r\n\r\n"

// Stream is the per-connection object described by spec.md §4.2: one socket,
// one Request in flight, transactional reads during header parsing, and the
// handling_request gate that serializes requests on a single connection.
type Stream struct {
	conn   net.Conn
	br     *bufio.Reader
	parser *wire.Parser
	req    *Request
	server *Server
	logger *zap.Logger

	handling bool // handling_request: true while a Responder is alive
	detached bool // true once the socket has been surrendered to an upgrade

	headersComplete  bool
	upgradeCandidate bool
	curFieldName     string

	maxHeaderBytes int64
}

func newStream(srv *Server, conn net.Conn) *Stream {
	s := &Stream{
		conn:           conn,
		br:             bufio.NewReaderSize(conn, 64*1024),
		req:            newRequest(conn.RemoteAddr().String()),
		server:         srv,
		logger:         srv.logger,
		maxHeaderBytes: srv.maxHeaderBytes(),
	}
	s.parser = wire.NewParser(wire.Callbacks{
		OnURL: func(d []byte) error { return s.req.setRequestURI(string(d)) },
		OnHeaderField: func(d []byte) error {
			s.curFieldName = string(d)
			return nil
		},
		OnHeaderValue: func(d []byte) error {
			s.req.applyHeader(s.curFieldName, string(d))
			return nil
		},
		OnHeadersComplete: func() error {
			s.req.Method = s.parser.Method
			s.req.MethodToken = s.parser.MethodToken
			s.req.ProtoMajor, s.req.ProtoMinor = s.parser.ProtoMajor, s.parser.ProtoMinor
			s.req.Proto = fmt.Sprintf("HTTP/%d.%d", s.parser.ProtoMajor, s.parser.ProtoMinor)
			s.headersComplete = true
			s.upgradeCandidate = s.parser.Upgrade && s.parser.Method != wire.MethodConnect
			return nil
		},
		OnBody: func(d []byte) error {
			s.req.bodyReserveHint(s.parser.ContentLength, len(d))
			s.req.Body = append(s.req.Body, d...)
			return nil
		},
	})
	return s
}

// serve drives the connection's read/dispatch loop, one request at a time,
// within the goroutine its caller (Server.acceptLoop) spawned for it — the
// idiomatic-Go mapping of spec.md §5's single-threaded event loop recorded
// in SPEC_FULL.md §5, grounded on badu-http's conn.go Serve for-loop shape.
func (s *Stream) serve() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic serving connection", zap.Any("panic", r), zap.String("remote", s.req.RemoteAddr))
		}
		if !s.detached {
			s.conn.Close()
		}
	}()

	for {
		s.req.reset()
		s.parser.Reset()
		s.headersComplete = false
		s.upgradeCandidate = false

		if err := s.readHeaders(); err != nil {
			if err == errHeaderTooLarge {
				fmt.Fprintf(s.conn, "HTTP/1.1 431 Request Header Fields Too Large"+errorHeaders)
				return
			}
			if !isCommonNetReadError(err) {
				s.logger.Debug("request parse failed", zap.Error(err), zap.String("remote", s.req.RemoteAddr))
				fmt.Fprintf(s.conn, "HTTP/1.1 400 Bad Request"+errorHeaders)
			}
			return
		}

		if s.upgradeCandidate {
			if s.tryUpgrade() {
				return // socket detached; Stream self-destroys per spec.md §4.2
			}
			// Hand-off refused: missing-handler path, connection dropped after.
			s.dispatchMissingUpgrade()
			return
		}

		if err := s.readBody(); err != nil {
			if !isCommonNetReadError(err) {
				s.logger.Debug("body read failed", zap.Error(err), zap.String("remote", s.req.RemoteAddr))
			}
			return
		}

		keepAlive := s.dispatch()
		if !keepAlive || s.detached {
			return
		}
	}
}

// readHeaders implements the transactional read discipline of spec.md §4.2:
// bytes are Peeked, not Discarded, until OnHeadersComplete, so a parser
// failure mid-header leaves br untouched for the caller to tear the
// connection down cleanly. Once headers are complete the consumed bytes are
// always Discarded, including on the upgrade path: gorilla/websocket's
// Upgrader already has the full parsed request via the Request object
// built from the same header pass (see tryUpgrade's stdReq), it does not
// re-read the request line or headers off the hijacked reader, and it
// rejects the handshake outright if that reader still has anything
// buffered. Rollback is therefore expressed as "the WebSocket collaborator
// gets an equivalent parsed Request", not as literally rewinding bytes.
func (s *Stream) readHeaders() error {
	fed := 0
	for {
		// Peek(fed+1) returns as soon as one unfed byte is buffered; the
		// parser is then offered everything buffered so far.
		buf, peekErr := s.br.Peek(fed + 1)
		if len(buf) > fed {
			buf, _ = s.br.Peek(s.br.Buffered())
			n, err := s.parser.Feed(buf[fed:])
			fed += n
			if err != nil {
				return err
			}
		}
		if s.headersComplete {
			break
		}
		if peekErr != nil {
			if errors.Is(peekErr, bufio.ErrBufferFull) {
				return errHeaderTooLarge
			}
			if fed == 0 {
				return io.EOF
			}
			return io.ErrUnexpectedEOF
		}
		if int64(fed) >= s.maxHeaderBytes {
			return errHeaderTooLarge
		}
	}

	if s.upgradeCandidate && !s.headersAcceptUpgrade() {
		s.upgradeCandidate = false
	}
	_, err := s.br.Discard(fed)
	return err
}

// headersAcceptUpgrade checks the actual header value, not just the
// parser's upgrade flag, per spec.md §4.5 ("inspects the Upgrade header...
// if its value equals websocket case-insensitively").
func (s *Stream) headersAcceptUpgrade() bool {
	if !strings.EqualFold(s.req.Header.Get(header.Upgrade), "websocket") {
		return false
	}
	conn := s.req.Header.Get(header.Connection)
	return strings.Contains(strings.ToLower(conn), "upgrade")
}

// readBody drains any body bytes the header-phase Peek window didn't already
// deliver to the parser, using ordinary Read calls rather than Peek so an
// arbitrarily large body never forces the header buffer to grow.
func (s *Stream) readBody() error {
	buf := make([]byte, 32*1024)
	for s.parser.State != wire.OnMessageComplete {
		n, err := s.br.Read(buf)
		if n > 0 {
			if _, ferr := s.parser.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if s.parser.State == wire.OnMessageComplete {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// dispatch hands the completed Request to the Server and returns whether the
// connection should be kept open for a follow-on request.
func (s *Stream) dispatch() bool {
	s.handling = true
	defer func() { s.handling = false }()

	resp := newResponder(s)
	s.server.handle(s.req, resp)
	resp.ensureReleased()
	return !resp.connectionClose
}

func (s *Stream) dispatchMissingUpgrade() {
	s.handling = true
	defer func() { s.handling = false }()
	s.logger.Warn("rejecting websocket upgrade", zap.String("remote", s.req.RemoteAddr), zap.String("path", s.req.Path()))
	resp := newResponder(s)
	s.server.handleMissing(s.req, resp)
	resp.ensureReleased()
}

// isCommonNetReadError reports the class of errors conn.go's readRequest
// treats as "client went away, don't bother replying".
func isCommonNetReadError(err error) bool {
	if err == io.EOF {
		return true
	}
	if err == io.ErrUnexpectedEOF {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}

package httpserver

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/badu/httpserver/header"
)

// MissingHandlerFunc answers a request that matched no route. It returns a
// Response rather than owning a Responder so the default 404 and any
// application override both flow through the same after-request chain and
// Server.SendResponse call (SPEC_FULL.md §4, "missingHandler is reachable
// from the same after-request chain").
type MissingHandlerFunc func(req *Request) Response

// Server is the top-level façade of spec.md §4.6: it owns the Router, the
// AfterRequestChain, the missing-handler, and the set of bound listeners.
// Grounded on badu-http's types_server.go/response_server.go Server type,
// generalized away from net/http's single-listener, handler-interface shape
// to spec.md's explicit listen/bind/route API.
type Server struct {
	mu           sync.Mutex
	router       *Router
	afterRequest *AfterRequestChain
	listeners    []net.Listener

	missingHandler MissingHandlerFunc
	logger         *zap.Logger

	// MaxHeaderBytes caps the header section a Stream will buffer before
	// failing the request with 431 (badu-http's conn.go errTooLarge path).
	// Zero means defaultMaxHeaderBytes. A Stream's read buffer is 64 KiB, so
	// a header section larger than that is refused with 431 whatever this
	// is set to.
	MaxHeaderBytes int64

	wsMu      sync.Mutex
	wsHandler WebSocketHandler
}

const defaultMaxHeaderBytes = 1 << 20

// NewServer returns a Server with an empty Router and AfterRequestChain. A
// nil logger is replaced with zap.NewNop() so embedding applications that
// never configure logging still get a silent, working Server
// (SPEC_FULL.md §2.1).
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		router:       newRouter(),
		afterRequest: newAfterRequestChain(),
		logger:       logger,
	}
}

func (s *Server) maxHeaderBytes() int64 {
	if s.MaxHeaderBytes > 0 {
		return s.MaxHeaderBytes
	}
	return defaultMaxHeaderBytes
}

// Listen binds address:port and starts accepting connections, returning the
// actual bound port (0 on failure) per spec.md §6 ("listen(address, port)
// returns the bound port (0 on failure")).
func (s *Server) Listen(address string, port int) (int, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		s.logger.Error("listen failed", zap.String("address", address), zap.Int("port", port), zap.Error(err))
		return 0, err
	}
	if !s.Bind(ln) {
		ln.Close()
		return 0, errors.New("httpserver: bind failed")
	}
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, nil
	}
	return tcpAddr.Port, nil
}

// Bind registers an already-constructed net.Listener and starts accepting
// on it (spec.md §6, "bind(listener) -> bool").
func (s *Server) Bind(ln net.Listener) bool {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	go s.acceptLoop(ln)
	return true
}

// acceptLoop is the per-listener goroutine that spawns a Stream (and its
// own goroutine) per accepted connection — the idiomatic-Go rendition of
// spec.md §5's single-threaded event loop, recorded in SPEC_FULL.md §5.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !isCommonNetReadError(err) {
				s.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(3 * time.Minute)
		}
		go newStream(s, conn).serve()
	}
}

// Servers returns the bound address of every live listener (spec.md §6,
// "query list of bound listeners / ports").
func (s *Server) Servers() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]net.Addr, len(s.listeners))
	for i, ln := range s.listeners {
		out[i] = ln.Addr()
	}
	return out
}

// SetMissingHandler installs the handler invoked when no rule matches
// (spec.md §6). Passing nil restores the default 404 responder.
func (s *Server) SetMissingHandler(h MissingHandlerFunc) {
	s.mu.Lock()
	s.missingHandler = h
	s.mu.Unlock()
}

// OnWebSocketUpgrade registers interest in upgraded connections (spec.md
// §9's signal/slot, "is anyone subscribed? becomes is the slot
// populated?"). Passing nil withdraws interest; with no handler registered,
// every upgrade request is refused per spec.md §4.5 step 2.
func (s *Server) OnWebSocketUpgrade(h WebSocketHandler) {
	s.wsMu.Lock()
	s.wsHandler = h
	s.wsMu.Unlock()
}

func (s *Server) webSocketHandler() WebSocketHandler {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.wsHandler
}

// Route registers pattern/methods/handler with the Router (spec.md §6).
func (s *Server) Route(pattern string, methods Methods, handler interface{}) error {
	return s.router.Route(pattern, methods, handler)
}

// RegisterConverter installs a converter on the Server's Router, returning
// the fragment it displaced (SPEC_FULL.md §4).
func (s *Server) RegisterConverter(sample interface{}, fragment string, conv ConvertFunc) string {
	return s.router.RegisterConverter(reflect.TypeOf(sample), fragment, conv)
}

// Redirect registers a rule that always answers with a Location redirect,
// the `addRedirectHandler`-equivalent convenience from SPEC_FULL.md §4.
func (s *Server) Redirect(pattern string, methods Methods, target string, code int) error {
	return s.router.Route(pattern, methods, func() Response {
		r := NewResponse(code, nil)
		r.Header.Set(header.Location, target)
		return r
	})
}

// RouteStatic registers a rule that always answers with the same bytes, the
// static-content convenience from SPEC_FULL.md §4.
func (s *Server) RouteStatic(pattern string, methods Methods, body []byte, contentType string) error {
	return s.router.Route(pattern, methods, func() Response {
		r := NewResponse(StatusOK, append([]byte(nil), body...))
		if contentType != "" {
			r.Header.Set(header.ContentType, contentType)
		}
		return r
	})
}

// AddAfterRequestHandler appends fn to the AfterRequestChain (spec.md §6).
func (s *Server) AddAfterRequestHandler(fn AfterRequestFunc) {
	s.afterRequest.Add(fn)
}

// SendResponse runs resp through the AfterRequestChain and serializes it
// through responder — the public operation spec.md §4.6 names
// "send_response(Response, Request, Responder)".
func (s *Server) SendResponse(resp Response, req *Request, responder *Responder) error {
	final := s.afterRequest.apply(resp, req)
	return responder.SendResponse(final)
}

// handle is called by Stream once a Request is fully parsed. Handlers that
// took an owned Responder have already written their own response and
// bypass the after-request chain by design (spec.md §4.4: such a handler
// returns void because it serialized the response itself).
func (s *Server) handle(req *Request, responder *Responder) {
	result := s.router.dispatch(req, responder)
	if result.tookResponder {
		return
	}
	var resp Response
	if result.matched {
		resp = result.response
	} else {
		resp = s.missingResponse(req)
	}
	if err := s.SendResponse(resp, req, responder); err != nil {
		s.logger.Debug("send response failed", zap.Error(err), zap.String("remote", req.RemoteAddr))
	}
}

// handleMissing is used directly by Stream for the "upgrade refused"
// path (spec.md §4.5 step 2: "invokes the missing-handler").
func (s *Server) handleMissing(req *Request, responder *Responder) {
	if err := s.SendResponse(s.missingResponse(req), req, responder); err != nil {
		s.logger.Debug("send response failed", zap.Error(err), zap.String("remote", req.RemoteAddr))
	}
}

func (s *Server) missingResponse(req *Request) Response {
	s.mu.Lock()
	h := s.missingHandler
	s.mu.Unlock()
	if h == nil {
		h = defaultMissingHandler
	}
	return h(req)
}

// defaultMissingHandler matches spec.md §4.6: "respond 404 with
// application/x-empty body".
func defaultMissingHandler(req *Request) Response {
	return NewResponse(StatusNotFound, nil)
}

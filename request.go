package httpserver

import (
	"net/url"
	"strings"

	"github.com/badu/httpserver/header"
	"github.com/badu/httpserver/wire"
)

// Request is the parsed HTTP request object assembled by a Stream from
// wire.Parser callbacks (spec.md §3, Request row). It is mutated only by
// its owning Stream, and destroyed with it.
type Request struct {
	Method      wire.Method
	MethodToken string
	URL         *url.URL
	Proto       string
	ProtoMajor  int
	ProtoMinor  int
	Header      *header.Header
	Body        []byte
	RemoteAddr  string

	// handling is cleared by reset and nothing in this package sets it;
	// the live-Responder gate is Stream.handling, which Stream sets while
	// a handler runs.
	handling bool

	rawPath string
}

// newRequest returns a Request ready to be fed by a fresh wire.Parser
// pass; RemoteAddr is fixed for the lifetime of the owning Stream.
func newRequest(remoteAddr string) *Request {
	r := &Request{RemoteAddr: remoteAddr}
	r.reset()
	return r
}

// reset clears every field so the Request is ready for the next message
// on the same connection (spec.md §4.1: "After OnMessageComplete the
// Request is reset (everything cleared) before the next read").
func (r *Request) reset() {
	r.Method = wire.MethodUnknown
	r.MethodToken = ""
	r.URL = &url.URL{Scheme: "http"}
	r.Proto = ""
	r.ProtoMajor = 0
	r.ProtoMinor = 0
	r.Header = header.New(8)
	r.Body = r.Body[:0]
	r.handling = false
	r.rawPath = ""
}

// bodyReserveHint sizes the body buffer once, the first time a body byte
// is observed, to content-length + whatever has already arrived in this
// callback — spec.md §4.1 ("body is reserved to content_length +
// fragment_length when first seen").
func (r *Request) bodyReserveHint(contentLength int64, fragmentLen int) {
	if cap(r.Body) > 0 {
		return
	}
	n := fragmentLen
	if contentLength > 0 {
		n = int(contentLength) + fragmentLen
	}
	if n > 0 {
		r.Body = make([]byte, 0, n)
	}
}

// applyHeader stores one (name, value) pair and, when name is Host, also
// re-parses value as a URL authority (spec.md §4.1).
func (r *Request) applyHeader(name, value string) {
	r.Header.Add(name, value)
	if strings.EqualFold(name, header.Host) {
		r.applyHostAuthority(value)
	}
}

func (r *Request) applyHostAuthority(hostHeader string) {
	host, port, err := splitHostPort(hostHeader)
	if err != nil {
		r.URL.Host = hostHeader
		return
	}
	if port != "" {
		r.URL.Host = host + ":" + port
	} else {
		r.URL.Host = host
	}
}

// splitHostPort is a tolerant Host-header splitter: it accepts bare hosts,
// "host:port", "[ipv6]" and "[ipv6]:port" without requiring the value to
// already be a valid net.Addr (unlike net.SplitHostPort, which rejects a
// portless bracketed literal).
func splitHostPort(hostport string) (host, port string, err error) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return hostport, "", nil
		}
		host = hostport[:end+1]
		rest := hostport[end+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return host, port, nil
	}
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 && !strings.Contains(hostport[i+1:], ":") {
		return hostport[:i], hostport[i+1:], nil
	}
	return hostport, "", nil
}

// setRequestURI parses the request-target from the request line into
// r.URL, preserving any authority already contributed by a Host header
// seen first (servers normally see Host after the request line, so this
// only fills in Path/RawQuery/opaque-origin form).
func (r *Request) setRequestURI(raw string) error {
	r.rawPath = raw
	if raw == "*" {
		r.URL.Path = "*"
		return nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	host := r.URL.Host
	scheme := r.URL.Scheme
	*r.URL = *u
	r.URL.Scheme = scheme
	if r.URL.Host == "" {
		r.URL.Host = host
	}
	return nil
}

// Path returns the URL's path component, matching the parameter-binding
// examples in spec.md §8 ("Request whose URL path equals /p/7").
func (r *Request) Path() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Path
}

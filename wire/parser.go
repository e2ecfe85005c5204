// Package wire implements the incremental HTTP/1.x request parser that
// sits between the raw connection bytes and the Request state machine.
//
// spec.md treats this component as an external collaborator ("assumed to
// be a pre-existing streaming parser with the semantics of a standard
// C-style HTTP parser"): fed bytes, it invokes callbacks for the request
// line, each header field/value, headers-complete, body chunks, and
// message-complete, the way joyent/http-parser or picohttpparser do. No
// package in the retrieved corpus implements that exact callback contract
// for Go, so this is a from-scratch, stdlib-only implementation — see
// DESIGN.md for that justification.
package wire

import (
	"errors"
	"strconv"
)

// State names the parser's current position in the message, mirroring
// spec.md §4.1's state enum.
type State int

const (
	Initial State = iota
	OnMessageBegin
	OnURL
	OnHeaders
	OnHeadersComplete
	OnBody
	OnMessageComplete
	OnChunkHeader
	OnChunkComplete
)

// ErrUnrecoverable is returned by Feed once the parser has entered an
// error state; per spec.md §4.1 the connection must then be dropped.
var ErrUnrecoverable = errors.New("wire: parser is in an unrecoverable error state")

// Callbacks are invoked as the parser advances. Every callback returning a
// non-nil error aborts the parse (the spec's "continue" contract: a
// callback that wants to keep parsing simply returns nil).
type Callbacks struct {
	OnURL             func(data []byte) error
	OnHeaderField     func(data []byte) error
	OnHeaderValue     func(data []byte) error
	OnHeadersComplete func() error
	OnBody            func(data []byte) error
	OnMessageComplete func() error
	OnChunkHeader     func(size int64) error
	OnChunkComplete   func() error
}

type lineState int

const (
	lineStateRequestLine lineState = iota
	lineStateHeaderLine
	lineStateChunkSizeLine
	lineStateChunkTrailerCRLF
)

// Parser is a single-message incremental HTTP/1.x parser. It is not safe
// for concurrent use; a Stream owns exactly one Parser for its lifetime
// and calls Reset between messages.
type Parser struct {
	cb Callbacks

	State   State
	failed  bool
	failErr error

	lineBuf []byte
	maxLine int

	Method      Method
	MethodToken string
	URL         string
	ProtoMajor  int
	ProtoMinor  int

	ContentLength int64 // -1 means unknown/absent
	Chunked       bool
	Upgrade       bool
	HeaderBytes   int64

	bodyMode      bodyMode
	bodyRemaining int64
	chunkPending  int64
	finalChunk    bool
}

type bodyMode int

const (
	bodyModeNone bodyMode = iota
	bodyModeFixed
	bodyModeChunked
	bodyModeUntilClose
)

// NewParser constructs a Parser that invokes cb as it advances.
func NewParser(cb Callbacks) *Parser {
	p := &Parser{cb: cb, maxLine: 64 * 1024}
	p.Reset()
	return p
}

// Reset clears all per-message state so the Parser can parse the next
// request on the same connection, per spec.md §4.1 ("After
// OnMessageComplete the Request is reset").
func (p *Parser) Reset() {
	p.State = Initial
	p.failed = false
	p.failErr = nil
	p.lineBuf = p.lineBuf[:0]
	p.Method = MethodUnknown
	p.MethodToken = ""
	p.URL = ""
	p.ProtoMajor, p.ProtoMinor = 0, 0
	p.ContentLength = -1
	p.Chunked = false
	p.Upgrade = false
	p.HeaderBytes = 0
	p.bodyMode = bodyModeNone
	p.bodyRemaining = 0
	p.chunkPending = 0
	p.finalChunk = false
}

// Failed reports whether the parser is in the unrecoverable error state
// described by spec.md §4.1.
func (p *Parser) Failed() bool { return p.failed }

func (p *Parser) fail(err error) {
	p.failed = true
	p.failErr = err
}

// Feed consumes as much of data as it can, invoking callbacks along the
// way, and returns the number of bytes consumed. It stops at the end of a
// message, leaving any bytes after it unconsumed. A non-nil error means
// the parser has failed and the caller must drop the connection;
// consuming every byte without reaching OnMessageComplete is legal and
// means "come back with more bytes".
func (p *Parser) Feed(data []byte) (int, error) {
	if p.failed {
		return 0, ErrUnrecoverable
	}
	total := 0
	for {
		beforeState := p.State
		n, done, err := p.step(data[total:])
		total += n
		if err != nil {
			p.fail(err)
			return total, err
		}
		if done {
			// Message complete; stop consuming until Reset.
			return total, nil
		}
		if n == 0 && p.State == beforeState {
			// No forward progress possible without more bytes than
			// were offered this call — legal per spec.md §4.1.
			return total, nil
		}
	}
}

// step consumes a prefix of data and reports how many bytes it used, and
// whether OnMessageComplete fired.
func (p *Parser) step(data []byte) (int, bool, error) {
	switch p.State {
	case Initial, OnMessageBegin, OnURL:
		return p.stepLine(data, lineStateRequestLine)
	case OnHeaders:
		return p.stepLine(data, lineStateHeaderLine)
	case OnHeadersComplete:
		return p.startBody(data)
	case OnBody:
		return p.stepBody(data)
	case OnChunkHeader:
		return p.stepLine(data, lineStateChunkSizeLine)
	case OnChunkComplete:
		return p.stepLine(data, lineStateChunkTrailerCRLF)
	case OnMessageComplete:
		return 0, true, nil
	default:
		return 0, false, errors.New("wire: parser in unknown state")
	}
}

// stepLine accumulates bytes up to the next CRLF, then dispatches to the
// line handler for the given context.
func (p *Parser) stepLine(data []byte, ls lineState) (int, bool, error) {
	for i, b := range data {
		if len(p.lineBuf) >= p.maxLine {
			return 0, false, errors.New("wire: header line too long")
		}
		if b == '\n' && len(p.lineBuf) > 0 && p.lineBuf[len(p.lineBuf)-1] == '\r' {
			line := p.lineBuf[:len(p.lineBuf)-1]
			p.lineBuf = p.lineBuf[:0]
			done, err := p.handleLine(line, ls)
			return i + 1, done, err
		}
		p.lineBuf = append(p.lineBuf, b)
	}
	return len(data), false, nil
}

func (p *Parser) handleLine(line []byte, ls lineState) (bool, error) {
	switch ls {
	case lineStateRequestLine:
		return false, p.handleRequestLine(line)
	case lineStateHeaderLine:
		return p.handleHeaderLine(line)
	case lineStateChunkSizeLine:
		return false, p.handleChunkSizeLine(line)
	case lineStateChunkTrailerCRLF:
		if p.finalChunk {
			// Trailer section after the terminating 0-size chunk; this
			// parser doesn't surface trailer fields, only the blank
			// line that ends them (no trailers are used anywhere in
			// this server, so skipping any trailer lines is enough).
			if len(line) == 0 {
				p.State = OnMessageComplete
				if p.cb.OnMessageComplete != nil {
					if err := p.cb.OnMessageComplete(); err != nil {
						return false, err
					}
				}
				return true, nil
			}
			return false, nil
		}
		// Blank line after chunk data.
		p.State = OnChunkHeader
		return false, nil
	}
	return false, errors.New("wire: unreachable line state")
}

func (p *Parser) handleRequestLine(line []byte) error {
	if len(line) == 0 {
		// Tolerate a leading blank line (RFC 2616 §4.1 leniency),
		// same as badu-http's conn.go peek-and-discard dance.
		return nil
	}
	parts := splitSpaces(string(line), 3)
	if len(parts) != 3 {
		return errors.New("wire: malformed request line")
	}
	p.MethodToken = parts[0]
	p.Method = ParseMethod(parts[0])
	p.URL = parts[1]
	major, minor, err := parseHTTPVersion(parts[2])
	if err != nil {
		return err
	}
	p.ProtoMajor, p.ProtoMinor = major, minor

	if p.cb.OnURL != nil {
		if err := p.cb.OnURL([]byte(p.URL)); err != nil {
			return err
		}
	}
	p.State = OnHeaders
	return nil
}

// handleHeaderLine processes one header line, or the terminating blank
// line (headers-complete).
func (p *Parser) handleHeaderLine(line []byte) (bool, error) {
	if len(line) == 0 {
		p.State = OnHeadersComplete
		if p.cb.OnHeadersComplete != nil {
			if err := p.cb.OnHeadersComplete(); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	p.HeaderBytes += int64(len(line)) + 2
	name, value, err := splitHeaderLine(line)
	if err != nil {
		return false, err
	}
	if p.cb.OnHeaderField != nil {
		if err := p.cb.OnHeaderField([]byte(name)); err != nil {
			return false, err
		}
	}
	if p.cb.OnHeaderValue != nil {
		if err := p.cb.OnHeaderValue([]byte(value)); err != nil {
			return false, err
		}
	}
	lname := asciiLower(name)
	switch lname {
	case "content-length":
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil || n < 0 {
			return false, errors.New("wire: invalid Content-Length")
		}
		p.ContentLength = n
	case "transfer-encoding":
		if asciiLower(trimASCIISpace(value)) == "chunked" {
			p.Chunked = true
		}
	case "upgrade":
		p.Upgrade = true
	}
	return false, nil
}

func (p *Parser) startBody(data []byte) (int, bool, error) {
	switch {
	case p.Chunked:
		p.bodyMode = bodyModeChunked
		p.State = OnChunkHeader
	case p.ContentLength >= 0:
		p.bodyMode = bodyModeFixed
		p.bodyRemaining = p.ContentLength
		p.State = OnBody
	default:
		// No declared length and not chunked: no body (server requests
		// with neither are assumed bodyless, per RFC 7230 §3.3).
		p.bodyMode = bodyModeNone
		done, err := p.finishMessage(data)
		return 0, done, err
	}
	return 0, false, nil
}

func (p *Parser) stepBody(data []byte) (int, bool, error) {
	switch p.bodyMode {
	case bodyModeFixed:
		n := len(data)
		if int64(n) > p.bodyRemaining {
			n = int(p.bodyRemaining)
		}
		if n > 0 {
			if p.cb.OnBody != nil {
				if err := p.cb.OnBody(data[:n]); err != nil {
					return 0, false, err
				}
			}
			p.bodyRemaining -= int64(n)
		}
		if p.bodyRemaining == 0 {
			done, err := p.finishMessage(data[n:])
			return n, done, err
		}
		return n, false, nil
	case bodyModeChunked:
		n := len(data)
		if int64(n) > p.chunkPending {
			n = int(p.chunkPending)
		}
		if n > 0 {
			if p.cb.OnBody != nil {
				if err := p.cb.OnBody(data[:n]); err != nil {
					return 0, false, err
				}
			}
			p.chunkPending -= int64(n)
		}
		if p.chunkPending == 0 {
			p.State = OnChunkComplete
			if p.cb.OnChunkComplete != nil {
				if err := p.cb.OnChunkComplete(); err != nil {
					return n, false, err
				}
			}
		}
		return n, false, nil
	default:
		return 0, false, errors.New("wire: body step in unexpected mode")
	}
}

func (p *Parser) handleChunkSizeLine(line []byte) error {
	size, err := parseChunkSize(line)
	if err != nil {
		return err
	}
	if p.cb.OnChunkHeader != nil {
		if err := p.cb.OnChunkHeader(size); err != nil {
			return err
		}
	}
	if size == 0 {
		p.finalChunk = true
		p.State = OnChunkComplete
		return nil
	}
	p.chunkPending = size
	p.State = OnBody
	return nil
}

func (p *Parser) finishMessage(rest []byte) (bool, error) {
	p.State = OnMessageComplete
	if p.cb.OnMessageComplete != nil {
		if err := p.cb.OnMessageComplete(); err != nil {
			return false, err
		}
	}
	return true, nil
}

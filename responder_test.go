package httpserver

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestResponder(buf *bytes.Buffer) *Responder {
	return &Responder{
		stream: &Stream{logger: zap.NewNop()},
		bw:     bufio.NewWriterSize(buf, 4096),
	}
}

func TestResponderWriteOrderEnforced(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResponder(&buf)

	if err := r.WriteHeader("X", "1"); err != ErrWriteOrder {
		t.Fatalf("header-before-status err = %v, want ErrWriteOrder", err)
	}
	if err := r.WriteBody([]byte("x")); err != ErrWriteOrder {
		t.Fatalf("body-before-status err = %v, want ErrWriteOrder", err)
	}
	if err := r.WriteStatusLine(StatusOK); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteStatusLine(StatusOK); err != ErrWriteOrder {
		t.Fatalf("second status line err = %v, want ErrWriteOrder", err)
	}
}

func TestResponderWriteBytesSetsHeaders(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResponder(&buf)

	if err := r.WriteBytes([]byte("hello"), nil, StatusOK); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line wrong: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Fatalf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Fatalf("missing blank-line + body: %q", out)
	}
}

func TestResponderWriteBytesEmptyBodyGetsXEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResponder(&buf)

	if err := r.WriteBytes(nil, nil, StatusNotFound); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Content-Type: application/x-empty\r\n") {
		t.Fatalf("missing application/x-empty: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 0\r\n") {
		t.Fatalf("missing Content-Length: 0: %q", out)
	}
}

func TestResponderReuseAfterReleaseFails(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResponder(&buf)
	r.ensureReleased()

	if err := r.WriteStatusLine(StatusOK); err != ErrResponderReused {
		t.Fatalf("err = %v, want ErrResponderReused", err)
	}
}

func TestResponderEnsureReleasedWithoutWriteClosesConnection(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResponder(&buf)
	r.ensureReleased()

	if !r.connectionClose {
		t.Fatal("expected connectionClose after releasing an unused Responder")
	}
}

func TestResponderWriteJSONSetsContentType(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResponder(&buf)

	if err := r.WriteJSON(map[string]int{"a": 1}, nil, StatusOK); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Content-Type: application/json\r\n") {
		t.Fatalf("missing application/json: %q", out)
	}
	if !strings.HasSuffix(out, `{"a":1}`) {
		t.Fatalf("unexpected body: %q", out)
	}
}

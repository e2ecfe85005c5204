package httpserver

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TestStreamServesRegisteredRoute drives a real Stream over a net.Pipe
// connection for spec.md §8's "hello" scenario: GET / with a single
// registered route produces a 200 with Content-Length and the body
// written by the handler.
func TestStreamServesRegisteredRoute(t *testing.T) {
	srv := NewServer(zap.NewNop())
	srv.Route("/", MethodGet, func() Response {
		return TextResponse(StatusOK, "hello")
	})

	client, server := net.Pipe()
	defer client.Close()
	go newStream(srv, server).serve()

	req := "GET / HTTP/1.1\r\nHost: example.org\r\n\r\n"
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/plain" {
		t.Fatalf("content-type = %q, want text/plain", got)
	}
	if resp.ContentLength != 5 {
		t.Fatalf("content-length = %d, want 5", resp.ContentLength)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q, want hello", body)
	}
}

// TestStreamMissingHandlerDefault404 exercises spec.md §8's "unregistered
// path with no missing-handler" scenario end to end.
func TestStreamMissingHandlerDefault404(t *testing.T) {
	srv := NewServer(zap.NewNop())

	client, server := net.Pipe()
	defer client.Close()
	go newStream(srv, server).serve()

	req := "GET /nope HTTP/1.1\r\nHost: example.org\r\n\r\n"
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/x-empty" {
		t.Fatalf("content-type = %q, want application/x-empty", got)
	}
	if resp.ContentLength != 0 {
		t.Fatalf("content-length = %d, want 0", resp.ContentLength)
	}
}

// TestStreamWebSocketUpgradeHandshake drives spec.md §4.5's hand-off over a
// net.Pipe: a registered route the request matches plus a subscribed
// WebSocketHandler must produce a 101 response and invoke the handler with
// the upgraded connection, exercising the fix to the rollback/Discard
// interaction documented in DESIGN.md.
func TestStreamWebSocketUpgradeHandshake(t *testing.T) {
	srv := NewServer(zap.NewNop())
	srv.Route("/ws", MethodGet, func() Response { return NewResponse(StatusOK, nil) })

	upgraded := make(chan *Request, 1)
	srv.OnWebSocketUpgrade(func(conn *websocket.Conn, req *Request) {
		upgraded <- req
		conn.Close()
	})

	client, server := net.Pipe()
	defer client.Close()
	go newStream(srv, server).serve()

	req := "GET /ws HTTP/1.1\r\n" +
		"Host: example.org\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}

	br := bufio.NewReader(client)
	statusLine, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(statusLine, "HTTP/1.1 101") {
		t.Fatalf("status line = %q, want 101 Switching Protocols", statusLine)
	}

	select {
	case got := <-upgraded:
		if got.Path() != "/ws" {
			t.Fatalf("upgraded request path = %q, want /ws", got.Path())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("websocket handler was never invoked")
	}
}

// TestStreamWebSocketUpgradeRefusedWithoutSubscriber exercises spec.md
// §4.5 step 2: with no WebSocketHandler registered, an upgrade request
// falls through to the missing-handler instead of a 101 response.
func TestStreamWebSocketUpgradeRefusedWithoutSubscriber(t *testing.T) {
	srv := NewServer(zap.NewNop())
	srv.Route("/ws", MethodGet, func() Response { return NewResponse(StatusOK, nil) })

	client, server := net.Pipe()
	defer client.Close()
	go newStream(srv, server).serve()

	req := "GET /ws HTTP/1.1\r\n" +
		"Host: example.org\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusNotFound {
		t.Fatalf("status = %d, want 404 (missing-handler fallback)", resp.StatusCode)
	}
}

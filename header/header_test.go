package header

import (
	"bytes"
	"testing"
)

func TestHeaderAddGetCaseInsensitive(t *testing.T) {
	h := New(0)
	h.Add("Content-Type", "text/plain")
	h.Add("x-request-id", "abc")

	if got := h.Get("content-type"); got != "text/plain" {
		t.Fatalf("Get(content-type) = %q, want text/plain", got)
	}
	if got := h.Get("X-Request-Id"); got != "abc" {
		t.Fatalf("Get(X-Request-Id) = %q, want abc", got)
	}
	if !h.Has("CONTENT-TYPE") {
		t.Fatal("Has(CONTENT-TYPE) = false, want true")
	}
}

func TestHeaderPreservesInsertionOrderAndCase(t *testing.T) {
	h := New(0)
	h.Add("Expires", "-1")
	h.Add("Content-Length", "0")
	h.Add("Content-Encoding", "gzip")

	var buf bytes.Buffer
	if err := h.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	want := "Expires: -1\r\nContent-Length: 0\r\nContent-Encoding: gzip\r\n"
	if buf.String() != want {
		t.Fatalf("WriteTo = %q, want %q", buf.String(), want)
	}
}

func TestHeaderAddMultiValue(t *testing.T) {
	h := New(0)
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")

	vals := h.Values("set-cookie")
	if len(vals) != 2 || vals[0] != "a=1" || vals[1] != "b=2" {
		t.Fatalf("Values = %v, want [a=1 b=2]", vals)
	}
}

func TestHeaderSetReplaces(t *testing.T) {
	h := New(0)
	h.Add("X-Foo", "1")
	h.Add("X-Foo", "2")
	h.Set("X-Foo", "3")

	if got := h.Values("x-foo"); len(got) != 1 || got[0] != "3" {
		t.Fatalf("Values after Set = %v, want [3]", got)
	}
}

func TestHeaderDel(t *testing.T) {
	h := New(0)
	h.Add("A", "1")
	h.Add("B", "2")
	h.Add("A", "3")
	h.Del("a")

	if h.Has("a") {
		t.Fatal("Has(a) after Del = true, want false")
	}
	if got := h.Get("b"); got != "2" {
		t.Fatalf("Get(b) = %q, want 2", got)
	}
}

func TestHeaderClone(t *testing.T) {
	h := New(0)
	h.Add("A", "1")
	c := h.Clone()
	c.Add("A", "2")

	if len(h.Values("a")) != 1 {
		t.Fatalf("original mutated by clone: %v", h.Values("a"))
	}
	if len(c.Values("a")) != 2 {
		t.Fatalf("clone missing added value: %v", c.Values("a"))
	}
}

package httpserver

import "testing"

func TestRequestHostHeaderPopulatesURLAuthority(t *testing.T) {
	r := newRequest("1.2.3.4:5555")
	if err := r.setRequestURI("/a/b?x=1"); err != nil {
		t.Fatal(err)
	}
	r.applyHeader("Host", "example.org:8080")

	if r.URL.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", r.URL.Scheme)
	}
	if r.URL.Host != "example.org:8080" {
		t.Fatalf("host = %q", r.URL.Host)
	}
	if r.Path() != "/a/b" {
		t.Fatalf("path = %q", r.Path())
	}
}

func TestRequestNoHostHeaderLeavesEmptyAuthority(t *testing.T) {
	r := newRequest("1.2.3.4:5555")
	if err := r.setRequestURI("/"); err != nil {
		t.Fatal(err)
	}
	if r.URL.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", r.URL.Scheme)
	}
	if r.URL.Host != "" {
		t.Fatalf("host = %q, want empty", r.URL.Host)
	}
}

func TestRequestResetClearsState(t *testing.T) {
	r := newRequest("addr")
	r.applyHeader("Host", "h")
	r.Body = append(r.Body, 'x')

	r.reset()

	if r.Header.Len() != 0 {
		t.Fatal("header not cleared by reset")
	}
	if len(r.Body) != 0 {
		t.Fatal("body not cleared by reset")
	}
	if r.URL.Host != "" {
		t.Fatal("URL not reset")
	}
}

func TestSplitHostPortBracketedIPv6(t *testing.T) {
	host, port, err := splitHostPort("[::1]:8080")
	if err != nil {
		t.Fatal(err)
	}
	if host != "[::1]" || port != "8080" {
		t.Fatalf("host=%q port=%q", host, port)
	}

	host, port, err = splitHostPort("[::1]")
	if err != nil {
		t.Fatal(err)
	}
	if host != "[::1]" || port != "" {
		t.Fatalf("host=%q port=%q", host, port)
	}
}

package httpserver

import (
	"fmt"
	"reflect"
	"strconv"
	"testing"

	"github.com/badu/httpserver/wire"
)

func TestRouteRejectsArgCountMismatch(t *testing.T) {
	rt := newRouter()
	err := rt.Route("/p/<arg>", MethodGet, func() Response { return Response{} })
	if err != ErrArgCountMismatch {
		t.Fatalf("err = %v, want ErrArgCountMismatch", err)
	}
}

func TestRouteRejectsBadSignature(t *testing.T) {
	rt := newRouter()
	err := rt.Route("/p", MethodGet, func() (Response, error) { return Response{}, nil })
	if err != ErrRouteSignature {
		t.Fatalf("err = %v, want ErrRouteSignature", err)
	}
}

func TestRouteResponderHandlerMustReturnVoid(t *testing.T) {
	rt := newRouter()
	err := rt.Route("/p", MethodGet, func(resp *Responder) Response { return Response{} })
	if err != ErrRouteSignature {
		t.Fatalf("err = %v, want ErrRouteSignature", err)
	}
}

func TestRouteRejectsMisplacedRequestParam(t *testing.T) {
	rt := newRouter()
	err := rt.Route("/p/<arg>", MethodGet, func(req *Request, n int) Response { return Response{} })
	if err != ErrRouteSignature {
		t.Fatalf("err = %v, want ErrRouteSignature", err)
	}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	rt := newRouter()
	var which string
	rt.Route("/u/<arg>", MethodGet, func(id int) Response {
		which = "int"
		return NewResponse(StatusOK, nil)
	})
	rt.Route("/u/<arg>", MethodGet, func(name string) Response {
		which = "str"
		return NewResponse(StatusOK, nil)
	})

	req := newRequest("addr")
	req.Method = wire.MethodGet
	if err := req.setRequestURI("/u/42"); err != nil {
		t.Fatal(err)
	}

	result := rt.dispatch(req, nil)
	if !result.matched || which != "int" {
		t.Fatalf("matched=%v which=%q, want int rule", result.matched, which)
	}

	which = ""
	req2 := newRequest("addr")
	req2.Method = wire.MethodGet
	if err := req2.setRequestURI("/u/abc"); err != nil {
		t.Fatal(err)
	}
	result2 := rt.dispatch(req2, nil)
	if !result2.matched || which != "str" {
		t.Fatalf("matched=%v which=%q, want str rule", result2.matched, which)
	}
}

// evenInt lets the converter-failure test exercise a regex match that still
// fails conversion, distinct from the regex simply not matching at all.
type evenInt int

func TestDispatchConverterFailureFallsThrough(t *testing.T) {
	rt := newRouter()
	rt.RegisterConverter(reflect.TypeOf(evenInt(0)), `(\d+)`, func(capture string) (reflect.Value, error) {
		n, err := strconv.Atoi(capture)
		if err != nil {
			return reflect.Value{}, err
		}
		if n%2 != 0 {
			return reflect.Value{}, fmt.Errorf("router_test: %d is odd", n)
		}
		return reflect.ValueOf(evenInt(n)), nil
	})
	rt.Route("/x/<arg>", MethodGet, func(n evenInt) Response { return NewResponse(StatusOK, []byte("even")) })
	rt.Route("/x/<arg>", MethodGet, func(s string) Response { return NewResponse(StatusOK, []byte("str")) })

	req := newRequest("addr")
	req.Method = wire.MethodGet
	if err := req.setRequestURI("/x/7"); err != nil {
		t.Fatal(err)
	}

	result := rt.dispatch(req, nil)
	if !result.matched {
		t.Fatal("expected fallthrough match on the string rule")
	}
	if string(result.response.Body) != "str" {
		t.Fatalf("body = %q, want str", result.response.Body)
	}
}

func TestRegisterConverterReturnsDisplacedFragment(t *testing.T) {
	rt := newRouter()
	prev := rt.RegisterConverter(reflect.TypeOf(int(0)), `(\d{1,3})`, func(capture string) (reflect.Value, error) {
		n, err := strconv.Atoi(capture)
		return reflect.ValueOf(n), err
	})
	if prev == "" {
		t.Fatal("expected the default int converter's fragment to be displaced")
	}
}
